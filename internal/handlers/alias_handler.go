package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"statement-import-backend/internal/services/alias"
)

type AliasHandler struct {
	store *alias.Store
}

func NewAliasHandler(s *alias.Store) *AliasHandler {
	return &AliasHandler{store: s}
}

func (h *AliasHandler) List(c *gin.Context) {
	aliases, err := h.store.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": aliases, "count": len(aliases)})
}

// Create handles POST /api/aliases. The description is reduced to its
// merchant pattern before it is stored.
func (h *AliasHandler) Create(c *gin.Context) {
	var payload struct {
		Description string `json:"description" binding:"required"`
		PayeeID     string `json:"payeeId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	payeeID, err := uuid.Parse(payload.PayeeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payee ID"})
		return
	}

	a, err := h.store.SetManual(c.Request.Context(), currentUser(c), payeeID, payload.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
