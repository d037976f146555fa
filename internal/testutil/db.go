// Package testutil provides database fixtures for package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"statement-import-backend/internal/models"
)

// NewDB opens a migrated SQLite database in a temporary directory.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// Date returns midnight UTC of the given day.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Amount parses a decimal literal.
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateAccount inserts an account for userID.
func CreateAccount(t *testing.T, db *gorm.DB, userID uuid.UUID, initial string) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           "Checking",
		InitialBalance: Amount(initial),
		Balance:        Amount(initial),
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

// CreateTransaction inserts a ledger entry on the account.
func CreateTransaction(t *testing.T, db *gorm.DB, account *models.Account, date time.Time, amount, description string) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		ID:          uuid.New(),
		UserID:      account.UserID,
		AccountID:   account.ID,
		Date:        date,
		Amount:      Amount(amount),
		Description: description,
	}
	require.NoError(t, db.Create(tx).Error)
	return tx
}
