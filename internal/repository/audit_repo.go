package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"statement-import-backend/internal/models"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) WithTx(tx *gorm.DB) *AuditRepository {
	return &AuditRepository{db: tx}
}

// Log records a ledger mutation made while confirming an import.
func (r *AuditRepository) Log(ctx context.Context, entry models.MatchAuditLog, details map[string]interface{}) error {
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return err
		}
		entry.Details = datatypes.JSON(raw)
	}
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(&entry).Error
}

// ForImport returns the audit trail of an import in insertion order.
func (r *AuditRepository) ForImport(ctx context.Context, importID uuid.UUID) ([]models.MatchAuditLog, error) {
	var logs []models.MatchAuditLog
	err := r.db.WithContext(ctx).Where("import_id = ?", importID).Order("created_at").Order("row_id").Find(&logs).Error
	return logs, err
}
