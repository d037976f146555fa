// Package rules assigns categories to new ledger entries from user-defined
// description rules.
package rules

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"statement-import-backend/internal/models"
	"statement-import-backend/internal/normalize"
	"statement-import-backend/internal/repository"
)

// Fields are the staged values a rule can look at.
type Fields struct {
	Description string
	Amount      decimal.Decimal
	Date        time.Time
}

// Matcher resolves the rule that applies to a transaction.
type Matcher struct {
	repo *repository.RuleRepository
}

func NewMatcher(repo *repository.RuleRepository) *Matcher {
	return &Matcher{repo: repo}
}

func (m *Matcher) WithTx(tx *gorm.DB) *Matcher {
	return &Matcher{repo: m.repo.WithTx(tx)}
}

// MatchTransaction returns the highest priority active rule of the user that
// matches f, or nil.
func (m *Matcher) MatchTransaction(ctx context.Context, userID uuid.UUID, f Fields) (*models.CategoryRule, error) {
	rules, err := m.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Match(rules, f), nil
}

// Match returns the first rule in rules that matches f. rules must already
// be ordered by priority.
func Match(rules []models.CategoryRule, f Fields) *models.CategoryRule {
	desc := normalize.Text(f.Description)
	for i := range rules {
		r := &rules[i]
		if !r.Active || !matchesPattern(r, desc) {
			continue
		}
		if r.MinAmount != nil && f.Amount.LessThan(*r.MinAmount) {
			continue
		}
		if r.MaxAmount != nil && f.Amount.GreaterThan(*r.MaxAmount) {
			continue
		}
		return r
	}
	return nil
}

func matchesPattern(r *models.CategoryRule, desc string) bool {
	pattern := normalize.Text(r.Pattern)
	if pattern == "" {
		return false
	}
	switch r.MatchType {
	case models.RuleExact:
		return desc == pattern
	default:
		return strings.Contains(desc, pattern)
	}
}
