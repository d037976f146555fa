package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"statement-import-backend/internal/models"
)

type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) WithTx(tx *gorm.DB) *RuleRepository {
	return &RuleRepository{db: tx}
}

func (r *RuleRepository) Create(ctx context.Context, rule *models.CategoryRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(rule).Error
}

// ListActive returns the user's active rules, highest priority first.
func (r *RuleRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]models.CategoryRule, error) {
	var rules []models.CategoryRule
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("priority DESC").Order("created_at").Order("id").
		Find(&rules).Error
	return rules, err
}
