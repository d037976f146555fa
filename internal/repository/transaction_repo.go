package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"statement-import-backend/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

// FindInWindow returns up to limit non-voided transactions of the account
// dated within [from, to], most recent first.
func (r *TransactionRepository) FindInWindow(ctx context.Context, accountID uuid.UUID, from, to time.Time, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	q := r.db.WithContext(ctx).
		Where("account_id = ? AND voided = ? AND date >= ? AND date <= ?", accountID, false, from, to).
		Order("date DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&txs).Error
	return txs, err
}

// FindByHashes returns the ids of non-voided transactions on the account
// keyed by import hash, for the given hashes only.
func (r *TransactionRepository) FindByHashes(ctx context.Context, accountID uuid.UUID, hashes []string) (map[string]uuid.UUID, error) {
	found := make(map[string]uuid.UUID)
	if len(hashes) == 0 {
		return found, nil
	}
	const chunk = 500
	for start := 0; start < len(hashes); start += chunk {
		end := min(start+chunk, len(hashes))
		var rows []models.Transaction
		err := r.db.WithContext(ctx).
			Select("id", "import_hash").
			Where("account_id = ? AND voided = ? AND import_hash IN ?", accountID, false, hashes[start:end]).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.ImportHash != nil {
				found[*row.ImportHash] = row.ID
			}
		}
	}
	return found, nil
}

// FindByHash returns the non-voided transaction carrying hash, or nil.
// Transactions created by importID are ignored so that identical rows of
// one statement are all kept.
func (r *TransactionRepository) FindByHash(ctx context.Context, accountID uuid.UUID, hash string, importID uuid.UUID) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND voided = ? AND import_hash = ?", accountID, false, hash).
		Where("(import_id IS NULL OR import_id <> ?)", importID).
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetForAccount returns a non-voided transaction that belongs to the account.
func (r *TransactionRepository) GetForAccount(ctx context.Context, id, accountID uuid.UUID) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ? AND voided = ?", id, accountID, false).
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(tx).Error
}

// MarkReconciled sets the reconciliation timestamp of a transaction.
func (r *TransactionRepository) MarkReconciled(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"reconciled_at": at, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecalculateBalance recomputes the cached balance of the account from its
// initial balance and all non-voided transactions, and stores it.
func (r *TransactionRepository) RecalculateBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		return decimal.Zero, err
	}

	var sum struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("account_id = ? AND voided = ?", accountID, false).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}

	balance := account.InitialBalance.Add(sum.Total).Round(2)
	err = r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{"balance": balance, "updated_at": time.Now().UTC()}).Error
	return balance, err
}
