// Package ledger materializes confirmed import decisions into the
// transaction ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"statement-import-backend/internal/models"
	"statement-import-backend/internal/parser"
	"statement-import-backend/internal/repository"
	"statement-import-backend/internal/services/alias"
	"statement-import-backend/internal/services/rules"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionSkip   Action = "skip"
	ActionMatch  Action = "match"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionSkip, ActionMatch:
		return true
	}
	return false
}

// Decision is what the user chose to do with one staged row.
type Decision struct {
	Action Action `json:"action"`
	// Classification is the analysis outcome the caller saw for the row.
	Classification       string     `json:"classification,omitempty"`
	MatchedTransactionID *uuid.UUID `json:"matchedTransactionId,omitempty"`
	PayeeID              *uuid.UUID `json:"payeeId,omitempty"`
	CategoryID           *uuid.UUID `json:"categoryId,omitempty"`
}

type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCreated   Outcome = "created"
	OutcomeMatched   Outcome = "matched"
	OutcomeDuplicate Outcome = "duplicate"
)

// Row is one decision together with the staged record it applies to.
type Row struct {
	ImportID       uuid.UUID
	UserID         uuid.UUID
	AccountID      uuid.UUID
	Record         parser.StagedRecord
	Decision       Decision
	AutoCategorize bool
}

// Result describes what Apply did.
type Result struct {
	Outcome         Outcome
	TransactionID   *uuid.UUID
	PayeeID         *uuid.UUID
	CategoryID      *uuid.UUID
	MerchantPattern string
}

// Committer applies decisions, one database transaction per row.
type Committer struct {
	db      *gorm.DB
	txs     *repository.TransactionRepository
	aliases *alias.Store
	rules   *rules.Matcher
	audit   *repository.AuditRepository
	log     zerolog.Logger
	now     func() time.Time
}

func NewCommitter(
	db *gorm.DB,
	txs *repository.TransactionRepository,
	aliases *alias.Store,
	rules *rules.Matcher,
	audit *repository.AuditRepository,
	log zerolog.Logger,
) *Committer {
	return &Committer{
		db:      db,
		txs:     txs,
		aliases: aliases,
		rules:   rules,
		audit:   audit,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// scope holds the collaborators bound to one database transaction.
type scope struct {
	txs     *repository.TransactionRepository
	aliases *alias.Store
	rules   *rules.Matcher
	audit   *repository.AuditRepository
}

func (c *Committer) bind(tx *gorm.DB) scope {
	return scope{
		txs:     c.txs.WithTx(tx),
		aliases: c.aliases.WithTx(tx),
		rules:   c.rules.WithTx(tx),
		audit:   c.audit.WithTx(tx),
	}
}

// Apply commits a single decision. Either everything the row changes is
// committed, or nothing is.
func (c *Committer) Apply(ctx context.Context, row Row) (Result, error) {
	switch row.Decision.Action {
	case ActionSkip:
		return Result{Outcome: OutcomeSkipped}, nil
	case ActionMatch, ActionCreate:
	default:
		return Result{}, fmt.Errorf("unknown action %q", row.Decision.Action)
	}

	var res Result
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s := c.bind(tx)
		var err error
		if row.Decision.Action == ActionMatch {
			res, err = c.match(ctx, s, row)
		} else {
			res, err = c.create(ctx, s, row)
		}
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (c *Committer) match(ctx context.Context, s scope, row Row) (Result, error) {
	id := row.Decision.MatchedTransactionID
	if id == nil {
		return Result{}, errors.New("match requires a transaction id")
	}
	existing, err := s.txs.GetForAccount(ctx, *id, row.AccountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, fmt.Errorf("transaction %s not found on account", id)
	}
	if err != nil {
		return Result{}, err
	}
	if err := s.txs.MarkReconciled(ctx, existing.ID, c.now()); err != nil {
		return Result{}, fmt.Errorf("marking transaction reconciled: %w", err)
	}
	err = s.audit.Log(ctx, models.MatchAuditLog{
		ImportID:      row.ImportID,
		TransactionID: existing.ID,
		RowID:         row.Record.Row,
		Action:        string(ActionMatch),
		PerformedBy:   row.UserID,
	}, map[string]interface{}{
		"fingerprint":    row.Record.Fingerprint,
		"classification": row.Decision.Classification,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeMatched, TransactionID: &existing.ID}, nil
}

func (c *Committer) create(ctx context.Context, s scope, row Row) (Result, error) {
	rec := row.Record
	if rec.Fingerprint != "" {
		dup, err := s.txs.FindByHash(ctx, row.AccountID, rec.Fingerprint, row.ImportID)
		if err != nil {
			return Result{}, err
		}
		if dup != nil {
			return Result{Outcome: OutcomeDuplicate, TransactionID: &dup.ID}, nil
		}
	}

	payeeID := row.Decision.PayeeID
	categoryID := row.Decision.CategoryID
	if payeeID == nil {
		suggested, err := s.aliases.Suggest(ctx, row.UserID, rec.Description)
		if err != nil {
			return Result{}, fmt.Errorf("looking up payee alias: %w", err)
		}
		if suggested != nil {
			id := suggested.PayeeID
			payeeID = &id
		}
	}
	if categoryID == nil && row.AutoCategorize {
		rule, err := s.rules.MatchTransaction(ctx, row.UserID, rules.Fields{
			Description: rec.Description,
			Amount:      rec.Amount,
			Date:        rec.Date,
		})
		if err != nil {
			return Result{}, fmt.Errorf("matching category rules: %w", err)
		}
		if rule != nil {
			id := rule.CategoryID
			categoryID = &id
			if payeeID == nil && rule.PayeeID != nil {
				payee := *rule.PayeeID
				payeeID = &payee
			}
		}
	}

	importID := row.ImportID
	var hash *string
	if rec.Fingerprint != "" {
		h := rec.Fingerprint
		hash = &h
	}
	entry := &models.Transaction{
		UserID:      row.UserID,
		AccountID:   row.AccountID,
		Date:        rec.Date,
		ValueDate:   rec.ValueDate,
		Amount:      rec.Amount,
		Description: rec.Description,
		Reference:   rec.Reference,
		PayeeID:     payeeID,
		CategoryID:  categoryID,
		ImportID:    &importID,
		ImportHash:  hash,
	}
	if err := s.txs.Create(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("inserting transaction: %w", err)
	}
	balance, err := s.txs.RecalculateBalance(ctx, row.AccountID)
	if err != nil {
		return Result{}, fmt.Errorf("recalculating balance: %w", err)
	}

	res := Result{
		Outcome:       OutcomeCreated,
		TransactionID: &entry.ID,
		PayeeID:       payeeID,
		CategoryID:    categoryID,
	}
	if payeeID != nil {
		pattern, err := s.aliases.Learn(ctx, row.UserID, *payeeID, rec.Description)
		switch {
		case errors.Is(err, alias.ErrEmptyPattern):
			c.log.Debug().Int("row", rec.Row).Msg("no merchant pattern to learn")
		case err != nil:
			return Result{}, fmt.Errorf("learning payee alias: %w", err)
		default:
			res.MerchantPattern = pattern
		}
	}

	err = s.audit.Log(ctx, models.MatchAuditLog{
		ImportID:      row.ImportID,
		TransactionID: entry.ID,
		RowID:         rec.Row,
		Action:        string(ActionCreate),
		PerformedBy:   row.UserID,
	}, map[string]interface{}{
		"fingerprint":     rec.Fingerprint,
		"payeeId":         payeeID,
		"categoryId":      categoryID,
		"merchantPattern": res.MerchantPattern,
		"balance":         balance.StringFixed(2),
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
