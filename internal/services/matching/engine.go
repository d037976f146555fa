// Package matching classifies staged statement records against the
// existing ledger of an account.
package matching

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"statement-import-backend/internal/models"
	"statement-import-backend/internal/normalize"
	"statement-import-backend/internal/parser"
	"statement-import-backend/internal/services/alias"
)

type Classification string

const (
	Duplicate Classification = "duplicate"
	Exact     Classification = "exact"
	Probable  Classification = "probable"
	New       Classification = "new"
)

const (
	ExactThreshold    = 80
	ProbableThreshold = 50
)

// Tolerances bound which ledger entries are considered and how they score.
type Tolerances struct {
	DateDays            int
	Amount              decimal.Decimal // relative, 0.01 = 1%
	SecondaryWindowDays int
	// CandidateWindowDays is the date distance used to select candidates.
	// It defaults to DateDays, which leaves the secondary tier unreachable
	// unless widened.
	CandidateWindowDays int
}

// DefaultTolerances returns 2 days, 1% and a 5 day secondary window.
func DefaultTolerances() Tolerances {
	return Tolerances{
		DateDays:            2,
		Amount:              decimal.New(1, -2),
		SecondaryWindowDays: 5,
		CandidateWindowDays: 2,
	}
}

func (t Tolerances) candidateDays() int {
	if t.CandidateWindowDays > t.DateDays {
		return t.CandidateWindowDays
	}
	return t.DateDays
}

// LookbackDays is how far around a statement's date range the ledger
// window must reach.
func (t Tolerances) LookbackDays() int {
	return t.candidateDays()
}

// MatchCandidate is the classification of one staged record.
type MatchCandidate struct {
	Record               parser.StagedRecord `json:"stagedRecord"`
	Classification       Classification      `json:"classification"`
	MatchedTransactionID *uuid.UUID          `json:"matchedTransactionId"`
	Score                *int                `json:"score"`
	SuggestedPayeeID     *uuid.UUID          `json:"suggestedPayeeId"`
	MerchantPattern      string              `json:"merchantPattern"`
}

// Window is the slice of the ledger a batch of records is matched against.
type Window struct {
	Transactions []models.Transaction
	// Hashes maps import hashes to transaction ids. It may hold hashes of
	// transactions outside Transactions.
	Hashes map[string]uuid.UUID
}

// NewWindow indexes txs by import hash and merges extra hash hits.
func NewWindow(txs []models.Transaction, extra map[string]uuid.UUID) *Window {
	w := &Window{Transactions: txs, Hashes: make(map[string]uuid.UUID, len(txs)+len(extra))}
	for _, tx := range txs {
		if tx.ImportHash != nil && !tx.Voided {
			w.Hashes[*tx.ImportHash] = tx.ID
		}
	}
	for h, id := range extra {
		if _, ok := w.Hashes[h]; !ok {
			w.Hashes[h] = id
		}
	}
	return w
}

// Engine classifies staged records. It never mutates the ledger.
type Engine struct {
	tol Tolerances
}

func NewEngine(tol Tolerances) *Engine {
	return &Engine{tol: tol}
}

func (e *Engine) Tolerances() Tolerances { return e.tol }

// Classify matches rec against the window and suggests a payee from aliases.
// aliases may be nil.
func (e *Engine) Classify(rec parser.StagedRecord, w *Window, aliases *alias.Index) MatchCandidate {
	c := MatchCandidate{
		Record:          rec,
		Classification:  New,
		MerchantPattern: normalize.MerchantPattern(rec.Description),
	}
	if aliases != nil {
		if a, ok := aliases.Match(c.MerchantPattern); ok {
			payee := a.PayeeID
			c.SuggestedPayeeID = &payee
		}
	}

	if id, ok := w.Hashes[rec.Fingerprint]; ok && rec.Fingerprint != "" {
		c.Classification = Duplicate
		c.MatchedTransactionID = &id
		return c
	}

	best, ok := e.bestCandidate(rec, w.Transactions)
	if !ok {
		return c
	}
	switch {
	case best.score >= ExactThreshold:
		c.Classification = Exact
	case best.score >= ProbableThreshold:
		c.Classification = Probable
	default:
		return c
	}
	id := best.tx.ID
	score := best.score
	c.MatchedTransactionID = &id
	c.Score = &score
	return c
}

// ClassifyAll classifies records in order.
func (e *Engine) ClassifyAll(records []parser.StagedRecord, w *Window, aliases *alias.Index) []MatchCandidate {
	out := make([]MatchCandidate, 0, len(records))
	for _, rec := range records {
		out = append(out, e.Classify(rec, w, aliases))
	}
	return out
}

type scored struct {
	tx         *models.Transaction
	score      int
	dateDist   int
	amountDist decimal.Decimal
}

func (e *Engine) bestCandidate(rec parser.StagedRecord, txs []models.Transaction) (scored, bool) {
	var cands []scored
	for i := range txs {
		tx := &txs[i]
		if tx.Voided {
			continue
		}
		days := dayDistance(rec.Date, tx.Date)
		if days > e.tol.candidateDays() {
			continue
		}
		if !e.amountWithin(rec.Amount, tx.Amount) {
			continue
		}
		cands = append(cands, scored{
			tx:         tx,
			score:      e.Score(rec, *tx),
			dateDist:   days,
			amountDist: rec.Amount.Sub(tx.Amount).Abs(),
		})
	}
	if len(cands) == 0 {
		return scored{}, false
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.dateDist != b.dateDist {
			return a.dateDist < b.dateDist
		}
		if c := a.amountDist.Cmp(b.amountDist); c != 0 {
			return c < 0
		}
		return a.tx.ID.String() < b.tx.ID.String()
	})
	return cands[0], true
}

// Score rates how well a ledger transaction matches a staged record, 0-100.
// Amount, date and description contribute independently.
func (e *Engine) Score(rec parser.StagedRecord, tx models.Transaction) int {
	score := 0
	switch {
	case rec.Amount.Equal(tx.Amount):
		score += 50
	case e.amountWithin(rec.Amount, tx.Amount):
		score += 30
	}

	switch days := dayDistance(rec.Date, tx.Date); {
	case days == 0:
		score += 30
	case days <= e.tol.DateDays:
		score += 15
	case days <= e.tol.SecondaryWindowDays:
		score += 5
	}

	a, b := normalize.Text(rec.Description), normalize.Text(tx.Description)
	switch {
	case a != "" && a == b:
		score += 20
	case a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)):
		score += 10
	}
	return score
}

// amountWithin reports |staged-ledger| / |staged| <= tolerance. A zero
// staged amount only matches zero.
func (e *Engine) amountWithin(staged, ledger decimal.Decimal) bool {
	if staged.IsZero() {
		return ledger.IsZero()
	}
	diff := staged.Sub(ledger).Abs()
	return diff.LessThanOrEqual(staged.Abs().Mul(e.tol.Amount))
}

func dayDistance(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	d := int(da.Sub(db).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}
