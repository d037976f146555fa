package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"statement-import-backend/internal/parser"
	"statement-import-backend/internal/services/imports"
	"statement-import-backend/internal/services/ledger"
)

const maxUploadBytes = 20 << 20

type ImportHandler struct {
	service *imports.Service
}

func NewImportHandler(s *imports.Service) *ImportHandler {
	return &ImportHandler{service: s}
}

// Analyze handles POST /api/imports. The multipart form carries the file,
// accountId and either a profile name or a JSON parser config.
func (h *ImportHandler) Analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	accountID, err := uuid.Parse(c.PostForm("accountId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account ID"})
		return
	}
	var cfg parser.Config
	if raw := c.PostForm("config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config: " + err.Error()})
			return
		}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}

	analysis, err := h.service.Analyze(c.Request.Context(), imports.AnalyzeRequest{
		UserID:    currentUser(c),
		AccountID: accountID,
		Filename:  header.Filename,
		Format:    c.PostForm("fileType"),
		Profile:   c.PostForm("profile"),
		Config:    cfg,
		Data:      data,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, analysis)
}

type confirmPayload struct {
	Decisions      map[int]ledger.Decision `json:"decisions"`
	AutoCategorize bool                    `json:"autoCategorize"`
}

// Confirm handles POST /api/imports/:id/confirm.
func (h *ImportHandler) Confirm(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid import ID"})
		return
	}
	var payload confirmPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	res, err := h.service.Confirm(c.Request.Context(), imports.ConfirmRequest{
		ImportID:       id,
		UserID:         currentUser(c),
		Decisions:      payload.Decisions,
		AutoCategorize: payload.AutoCategorize,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Get handles GET /api/imports/:id.
func (h *ImportHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid import ID"})
		return
	}
	imp, err := h.service.GetImport(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, imp)
}

// List handles GET /api/imports?accountId=&limit=.
func (h *ImportHandler) List(c *gin.Context) {
	var accountID *uuid.UUID
	if raw := c.Query("accountId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account ID"})
			return
		}
		accountID = &id
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := h.service.ListImports(c.Request.Context(), currentUser(c), accountID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "count": len(list)})
}
