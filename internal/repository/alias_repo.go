package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"statement-import-backend/internal/models"
)

type AliasRepository struct {
	db *gorm.DB
}

func NewAliasRepository(db *gorm.DB) *AliasRepository {
	return &AliasRepository{db: db}
}

func (r *AliasRepository) WithTx(tx *gorm.DB) *AliasRepository {
	return &AliasRepository{db: tx}
}

// FindByPattern returns the user's alias for an exact pattern, or nil.
func (r *AliasRepository) FindByPattern(ctx context.Context, userID uuid.UUID, pattern string) (*models.PayeeAlias, error) {
	var alias models.PayeeAlias
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND normalized_pattern = ?", userID, pattern).
		First(&alias).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alias, nil
}

// ListForUser returns every alias of the user, most used first.
func (r *AliasRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.PayeeAlias, error) {
	var aliases []models.PayeeAlias
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("times_matched DESC").Order("normalized_pattern").
		Find(&aliases).Error
	return aliases, err
}

// Upsert inserts the alias or, when (user, pattern) already exists, points
// it at the new payee and bumps its usage counter. The source of an
// existing alias is preserved.
func (r *AliasRepository) Upsert(ctx context.Context, alias *models.PayeeAlias) error {
	if alias.ID == uuid.Nil {
		alias.ID = uuid.New()
	}
	now := time.Now().UTC()
	if alias.LastMatchedAt == nil {
		alias.LastMatchedAt = &now
	}
	if alias.TimesMatched == 0 {
		alias.TimesMatched = 1
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "normalized_pattern"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"payee_id":         alias.PayeeID,
			"bank_description": alias.BankDescription,
			"times_matched":    gorm.Expr("payee_aliases.times_matched + ?", 1),
			"last_matched_at":  alias.LastMatchedAt,
			"updated_at":       now,
		}),
	}).Create(alias).Error
}

// SetManual creates or overwrites a user-defined alias.
func (r *AliasRepository) SetManual(ctx context.Context, alias *models.PayeeAlias) error {
	if alias.ID == uuid.Nil {
		alias.ID = uuid.New()
	}
	alias.Source = models.AliasManual
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "normalized_pattern"}},
		DoUpdates: clause.AssignmentColumns([]string{"payee_id", "bank_description", "source", "updated_at"}),
	}).Create(alias).Error
}
