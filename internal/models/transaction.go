package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is a ledger entry. ImportID and ImportHash are only set for
// entries created by a statement import.
type Transaction struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID       `gorm:"type:uuid;index" json:"userId"`
	AccountID    uuid.UUID       `gorm:"type:uuid;index:idx_tx_account_date;index:idx_tx_account_hash" json:"accountId"`
	Date         time.Time       `gorm:"index:idx_tx_account_date" json:"date"`
	ValueDate    *time.Time      `json:"valueDate,omitempty"`
	Amount       decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount"`
	Description  string          `json:"description"`
	Reference    string          `json:"reference,omitempty"`
	PayeeID      *uuid.UUID      `gorm:"type:uuid" json:"payeeId,omitempty"`
	CategoryID   *uuid.UUID      `gorm:"type:uuid" json:"categoryId,omitempty"`
	ImportID     *uuid.UUID      `gorm:"type:uuid;index" json:"importId,omitempty"`
	ImportHash   *string         `gorm:"size:32;index:idx_tx_account_hash" json:"importHash,omitempty"`
	Voided       bool            `gorm:"index" json:"voided"`
	ReconciledAt *time.Time      `json:"reconciledAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type Account struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID       `gorm:"type:uuid;index" json:"userId"`
	Name           string          `json:"name"`
	InitialBalance decimal.Decimal `gorm:"type:decimal(14,2)" json:"initialBalance"`
	Balance        decimal.Decimal `gorm:"type:decimal(14,2)" json:"balance"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
