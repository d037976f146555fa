package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"statement-import-backend/internal/models"
)

type ImportRepository struct {
	db *gorm.DB
}

func NewImportRepository(db *gorm.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

func (r *ImportRepository) Create(ctx context.Context, imp *models.Import) error {
	if imp.ID == uuid.Nil {
		imp.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(imp).Error
}

// GetForUser returns the import only if it belongs to userID.
func (r *ImportRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Import, error) {
	var imp models.Import
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&imp).Error
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// ListForUser returns the most recent imports of a user, optionally
// restricted to one account.
func (r *ImportRepository) ListForUser(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID, limit int) ([]models.Import, error) {
	var imports []models.Import
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if accountID != nil {
		q = q.Where("account_id = ?", *accountID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("created_at DESC").Find(&imports).Error
	return imports, err
}

// TransitionStatus moves an import from one status to another only if it
// is still in the expected status. It reports whether the row was changed.
func (r *ImportRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.ImportStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Import{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SaveResult persists status, counters and error details of an import.
func (r *ImportRepository) SaveResult(ctx context.Context, imp *models.Import) error {
	return r.db.WithContext(ctx).Model(&models.Import{}).
		Where("id = ?", imp.ID).
		Select("status", "total_rows", "skipped_rows", "imported_count", "duplicate_count",
			"matched_count", "error_count", "error_details", "completed_at", "updated_at").
		Updates(&models.Import{
			Status:         imp.Status,
			TotalRows:      imp.TotalRows,
			SkippedRows:    imp.SkippedRows,
			ImportedCount:  imp.ImportedCount,
			DuplicateCount: imp.DuplicateCount,
			MatchedCount:   imp.MatchedCount,
			ErrorCount:     imp.ErrorCount,
			ErrorDetails:   imp.ErrorDetails,
			CompletedAt:    imp.CompletedAt,
			UpdatedAt:      time.Now().UTC(),
		}).Error
}

// FailStale moves imports stuck in processing since before cutoff to
// failed, appending reason to their error details.
func (r *ImportRepository) FailStale(ctx context.Context, cutoff time.Time, reason models.RowError) (int64, error) {
	var stale []models.Import
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.ImportProcessing, cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}
	var changed int64
	now := time.Now().UTC()
	for i := range stale {
		imp := &stale[i]
		details := append(imp.ErrorDetails, reason)
		res := r.db.WithContext(ctx).Model(&models.Import{}).
			Where("id = ? AND status = ?", imp.ID, models.ImportProcessing).
			Updates(map[string]interface{}{
				"status":        models.ImportFailed,
				"error_details": details,
				"error_count":   imp.ErrorCount + 1,
				"completed_at":  now,
				"updated_at":    now,
			})
		if res.Error != nil {
			return changed, res.Error
		}
		changed += res.RowsAffected
	}
	return changed, nil
}
