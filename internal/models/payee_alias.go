package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AliasSource string

const (
	AliasManual      AliasSource = "manual"
	AliasImportLearn AliasSource = "import_learn"
)

// PayeeAlias maps a merchant pattern to a payee. At most one row exists per
// (user, pattern).
type PayeeAlias struct {
	ID                uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID   `gorm:"type:uuid;uniqueIndex:idx_alias_user_pattern" json:"userId"`
	PayeeID           uuid.UUID   `gorm:"type:uuid;index" json:"payeeId"`
	BankDescription   string      `json:"bankDescription"`
	NormalizedPattern string      `gorm:"uniqueIndex:idx_alias_user_pattern" json:"normalizedPattern"`
	Source            AliasSource `json:"source"`
	TimesMatched      int         `json:"timesMatched"`
	LastMatchedAt     *time.Time  `json:"lastMatchedAt,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

type RuleMatchType string

const (
	RuleContains RuleMatchType = "contains"
	RuleExact    RuleMatchType = "exact"
)

// CategoryRule assigns a category (and optionally a payee) to new ledger
// entries whose normalized description matches Pattern.
type CategoryRule struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID        `gorm:"type:uuid;index" json:"userId"`
	Name       string           `json:"name"`
	Pattern    string           `json:"pattern"`
	MatchType  RuleMatchType    `json:"matchType"`
	MinAmount  *decimal.Decimal `gorm:"type:decimal(14,2)" json:"minAmount,omitempty"`
	MaxAmount  *decimal.Decimal `gorm:"type:decimal(14,2)" json:"maxAmount,omitempty"`
	Priority   int              `json:"priority"`
	CategoryID uuid.UUID        `gorm:"type:uuid" json:"categoryId"`
	PayeeID    *uuid.UUID       `gorm:"type:uuid" json:"payeeId,omitempty"`
	Active     bool             `json:"active"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Account{},
		&Transaction{},
		&Import{},
		&ImportFile{},
		&PayeeAlias{},
		&CategoryRule{},
		&MatchAuditLog{},
	}
}
