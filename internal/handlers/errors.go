package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"statement-import-backend/internal/logger"
	"statement-import-backend/internal/services/alias"
	"statement-import-backend/internal/services/imports"
)

// respondError maps service errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		ferr *imports.FileError
		verr *imports.ValidationError
	)
	switch {
	case errors.As(err, &ferr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ferr.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": verr.Problems})
	case errors.Is(err, alias.ErrEmptyPattern):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, imports.ErrImportNotFound), errors.Is(err, imports.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, imports.ErrConfirmInProgress), errors.Is(err, imports.ErrInvalidStatus):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "confirmation timed out, import is still processing"})
	default:
		log := logger.FromContext(c.Request.Context())
		log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
