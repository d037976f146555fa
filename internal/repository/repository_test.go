package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"statement-import-backend/internal/models"
	"statement-import-backend/internal/testutil"
)

func TestTransactionRepository_FindInWindow(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	account := testutil.CreateAccount(t, db, uuid.New(), "0")
	other := testutil.CreateAccount(t, db, uuid.New(), "0")

	inside := testutil.CreateTransaction(t, db, account, testutil.Date(2025, 1, 10), "-10.00", "A")
	testutil.CreateTransaction(t, db, account, testutil.Date(2025, 1, 20), "-20.00", "B")
	testutil.CreateTransaction(t, db, account, testutil.Date(2024, 12, 1), "-30.00", "too old")
	testutil.CreateTransaction(t, db, other, testutil.Date(2025, 1, 12), "-40.00", "other account")
	voided := testutil.CreateTransaction(t, db, account, testutil.Date(2025, 1, 15), "-50.00", "voided")
	require.NoError(t, db.Model(voided).Update("voided", true).Error)

	repo := NewTransactionRepository(db)
	txs, err := repo.FindInWindow(ctx, account.ID, testutil.Date(2025, 1, 1), testutil.Date(2025, 1, 31), 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "B", txs[0].Description)
	assert.Equal(t, inside.ID, txs[1].ID)

	limited, err := repo.FindInWindow(ctx, account.ID, testutil.Date(2025, 1, 1), testutil.Date(2025, 1, 31), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "B", limited[0].Description)
}

func TestTransactionRepository_Hashes(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	account := testutil.CreateAccount(t, db, uuid.New(), "0")
	repo := NewTransactionRepository(db)

	hash := "0123456789abcdef0123456789abcdef"
	otherHash := "fedcba9876543210fedcba9876543210"
	tx := &models.Transaction{
		UserID:     account.UserID,
		AccountID:  account.ID,
		Date:       testutil.Date(2025, 1, 15),
		Amount:     testutil.Amount("-42.00"),
		ImportHash: &hash,
	}
	require.NoError(t, repo.Create(ctx, tx))

	found, err := repo.FindByHashes(ctx, account.ID, []string{hash, "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uuid.UUID{hash: tx.ID}, found)

	got, err := repo.FindByHash(ctx, account.ID, hash, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tx.ID, got.ID)

	got, err = repo.FindByHash(ctx, uuid.New(), hash, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)

	importID := uuid.New()
	twin := &models.Transaction{
		UserID:     account.UserID,
		AccountID:  account.ID,
		Date:       testutil.Date(2025, 1, 16),
		Amount:     testutil.Amount("-2.10"),
		ImportID:   &importID,
		ImportHash: &otherHash,
	}
	require.NoError(t, repo.Create(ctx, twin))

	got, err = repo.FindByHash(ctx, account.ID, otherHash, importID)
	require.NoError(t, err)
	assert.Nil(t, got, "rows of the same import are not duplicates of each other")

	got, err = repo.FindByHash(ctx, account.ID, otherHash, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, twin.ID, got.ID)
}

func TestTransactionRepository_ReconcileAndBalance(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	account := testutil.CreateAccount(t, db, uuid.New(), "100.00")
	tx := testutil.CreateTransaction(t, db, account, testutil.Date(2025, 1, 10), "-10.25", "A")
	testutil.CreateTransaction(t, db, account, testutil.Date(2025, 1, 11), "50.50", "B")
	voided := testutil.CreateTransaction(t, db, account, testutil.Date(2025, 1, 12), "-1000", "C")
	require.NoError(t, db.Model(voided).Update("voided", true).Error)

	repo := NewTransactionRepository(db)

	balance, err := repo.RecalculateBalance(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "140.25", balance.StringFixed(2))

	var stored models.Account
	require.NoError(t, db.First(&stored, "id = ?", account.ID).Error)
	assert.Equal(t, "140.25", stored.Balance.StringFixed(2))

	at := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkReconciled(ctx, tx.ID, at))
	got, err := repo.GetForAccount(ctx, tx.ID, account.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReconciledAt)
	assert.True(t, at.Equal(*got.ReconciledAt))

	assert.ErrorIs(t, repo.MarkReconciled(ctx, uuid.New(), at), gorm.ErrRecordNotFound)

	_, err = repo.GetForAccount(ctx, voided.ID, account.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.GetForAccount(ctx, tx.ID, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestImportRepository_TransitionStatus(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewImportRepository(db)
	userID := uuid.New()

	imp := &models.Import{UserID: userID, AccountID: uuid.New(), Filename: "a.csv", Status: models.ImportAnalyzed}
	require.NoError(t, repo.Create(ctx, imp))

	ok, err := repo.TransitionStatus(ctx, imp.ID, models.ImportAnalyzed, models.ImportProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, imp.ID, models.ImportAnalyzed, models.ImportProcessing)
	require.NoError(t, err)
	assert.False(t, ok, "second transition from a stale status must fail")

	got, err := repo.GetForUser(ctx, imp.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportProcessing, got.Status)

	_, err = repo.GetForUser(ctx, imp.ID, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestImportRepository_SaveResultAndList(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewImportRepository(db)
	userID := uuid.New()
	accountID := uuid.New()

	imp := &models.Import{UserID: userID, AccountID: accountID, Filename: "a.csv", Status: models.ImportProcessing}
	require.NoError(t, repo.Create(ctx, imp))
	require.NoError(t, repo.Create(ctx, &models.Import{UserID: userID, AccountID: uuid.New(), Status: models.ImportPending}))
	require.NoError(t, repo.Create(ctx, &models.Import{UserID: uuid.New(), AccountID: accountID, Status: models.ImportPending}))

	now := time.Now().UTC()
	imp.Status = models.ImportCompleted
	imp.ImportedCount = 2
	imp.ErrorCount = 1
	imp.ErrorDetails = []models.RowError{{RowID: 3, Error: "boom"}}
	imp.CompletedAt = &now
	require.NoError(t, repo.SaveResult(ctx, imp))

	got, err := repo.GetForUser(ctx, imp.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportCompleted, got.Status)
	assert.Equal(t, 2, got.ImportedCount)
	assert.Equal(t, 1, got.ErrorCount)
	assert.Equal(t, []models.RowError{{RowID: 3, Error: "boom"}}, []models.RowError(got.ErrorDetails))
	assert.NotNil(t, got.CompletedAt)

	all, err := repo.ListForUser(ctx, userID, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	forAccount, err := repo.ListForUser(ctx, userID, &accountID, 10)
	require.NoError(t, err)
	require.Len(t, forAccount, 1)
	assert.Equal(t, imp.ID, forAccount[0].ID)
}

func TestAliasRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewAliasRepository(db)
	userID := uuid.New()
	first, second := uuid.New(), uuid.New()

	for i, payee := range []uuid.UUID{first, first, second} {
		require.NoError(t, repo.Upsert(ctx, &models.PayeeAlias{
			UserID:            userID,
			PayeeID:           payee,
			BankDescription:   "CB CAFE DU COIN " + string(rune('1'+i)),
			NormalizedPattern: "cafe du coin",
			Source:            models.AliasImportLearn,
		}))
	}

	aliases, err := repo.ListForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, 3, aliases[0].TimesMatched)
	assert.Equal(t, second, aliases[0].PayeeID)
	assert.Equal(t, "CB CAFE DU COIN 3", aliases[0].BankDescription)
	assert.Equal(t, models.AliasImportLearn, aliases[0].Source)

	got, err := repo.FindByPattern(ctx, userID, "cafe du coin")
	require.NoError(t, err)
	require.NotNil(t, got)
	got, err = repo.FindByPattern(ctx, uuid.New(), "cafe du coin")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAliasRepository_SetManualKeepsCounter(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewAliasRepository(db)
	userID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, &models.PayeeAlias{
		UserID: userID, PayeeID: uuid.New(), NormalizedPattern: "edf", Source: models.AliasImportLearn,
	}))
	payee := uuid.New()
	require.NoError(t, repo.SetManual(ctx, &models.PayeeAlias{UserID: userID, PayeeID: payee, NormalizedPattern: "edf"}))

	got, err := repo.FindByPattern(ctx, userID, "edf")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, payee, got.PayeeID)
	assert.Equal(t, models.AliasManual, got.Source)
	assert.Equal(t, 1, got.TimesMatched)
}

func TestRuleRepository_ListActive(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewRuleRepository(db)
	userID := uuid.New()

	low := &models.CategoryRule{UserID: userID, Name: "low", Pattern: "a", MatchType: models.RuleContains, Priority: 1, Active: true}
	high := &models.CategoryRule{UserID: userID, Name: "high", Pattern: "b", MatchType: models.RuleContains, Priority: 10, Active: true}
	off := &models.CategoryRule{UserID: userID, Name: "off", Pattern: "c", MatchType: models.RuleContains, Priority: 99, Active: false}
	for _, r := range []*models.CategoryRule{low, high, off} {
		require.NoError(t, repo.Create(ctx, r))
	}

	rules, err := repo.ListActive(ctx, userID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "high", rules[0].Name)
	assert.Equal(t, "low", rules[1].Name)
}

func TestAuditRepository_Log(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewAuditRepository(db)
	importID := uuid.New()

	require.NoError(t, repo.Log(ctx, models.MatchAuditLog{ImportID: importID, TransactionID: uuid.New(), RowID: 2, Action: "create"},
		map[string]interface{}{"amount": "-42.00"}))

	logs, err := repo.ForImport(ctx, importID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "create", logs[0].Action)
	assert.JSONEq(t, `{"amount":"-42.00"}`, string(logs[0].Details))
}
