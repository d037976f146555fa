// Package alias maps merchant patterns to payees and learns new mappings
// from confirmed imports.
package alias

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"statement-import-backend/internal/models"
	"statement-import-backend/internal/normalize"
	"statement-import-backend/internal/repository"
)

// ErrEmptyPattern is returned when a description has no merchant pattern
// left after boilerplate stripping.
var ErrEmptyPattern = errors.New("description has no merchant pattern")

// Index is an immutable snapshot of a user's aliases.
type Index struct {
	byPattern map[string]models.PayeeAlias
	ranked    []models.PayeeAlias
}

// NewIndex builds an index. Substring lookups prefer higher usage counts,
// then longer patterns.
func NewIndex(aliases []models.PayeeAlias) *Index {
	ix := &Index{
		byPattern: make(map[string]models.PayeeAlias, len(aliases)),
		ranked:    make([]models.PayeeAlias, 0, len(aliases)),
	}
	for _, a := range aliases {
		if a.NormalizedPattern == "" {
			continue
		}
		ix.byPattern[a.NormalizedPattern] = a
		ix.ranked = append(ix.ranked, a)
	}
	sort.SliceStable(ix.ranked, func(i, j int) bool {
		a, b := ix.ranked[i], ix.ranked[j]
		if a.TimesMatched != b.TimesMatched {
			return a.TimesMatched > b.TimesMatched
		}
		if len(a.NormalizedPattern) != len(b.NormalizedPattern) {
			return len(a.NormalizedPattern) > len(b.NormalizedPattern)
		}
		if a.NormalizedPattern != b.NormalizedPattern {
			return a.NormalizedPattern < b.NormalizedPattern
		}
		return a.ID.String() < b.ID.String()
	})
	return ix
}

// Len returns the number of indexed aliases.
func (ix *Index) Len() int { return len(ix.ranked) }

// Match returns the alias for a merchant pattern: an exact match first,
// otherwise the best ranked alias whose pattern contains or is contained
// in it.
func (ix *Index) Match(pattern string) (models.PayeeAlias, bool) {
	if pattern == "" {
		return models.PayeeAlias{}, false
	}
	if a, ok := ix.byPattern[pattern]; ok {
		return a, true
	}
	for _, a := range ix.ranked {
		if strings.Contains(pattern, a.NormalizedPattern) || strings.Contains(a.NormalizedPattern, pattern) {
			return a, true
		}
	}
	return models.PayeeAlias{}, false
}

// Suggest extracts the merchant pattern of a raw description and matches it.
func (ix *Index) Suggest(description string) (models.PayeeAlias, bool) {
	return ix.Match(normalize.MerchantPattern(description))
}

// Store is the persistent alias store.
type Store struct {
	repo *repository.AliasRepository
}

func NewStore(repo *repository.AliasRepository) *Store {
	return &Store{repo: repo}
}

// WithTx returns a store that reads and writes through tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{repo: s.repo.WithTx(tx)}
}

// Snapshot loads all aliases of a user into an Index.
func (s *Store) Snapshot(ctx context.Context, userID uuid.UUID) (*Index, error) {
	aliases, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewIndex(aliases), nil
}

// Lookup returns the alias with exactly this pattern, or nil.
func (s *Store) Lookup(ctx context.Context, userID uuid.UUID, pattern string) (*models.PayeeAlias, error) {
	return s.repo.FindByPattern(ctx, userID, pattern)
}

func (s *Store) List(ctx context.Context, userID uuid.UUID) ([]models.PayeeAlias, error) {
	return s.repo.ListForUser(ctx, userID)
}

// Suggest returns the payee alias for a raw description, or nil.
func (s *Store) Suggest(ctx context.Context, userID uuid.UUID, description string) (*models.PayeeAlias, error) {
	pattern := normalize.MerchantPattern(description)
	if pattern == "" {
		return nil, nil
	}
	exact, err := s.repo.FindByPattern(ctx, userID, pattern)
	if err != nil || exact != nil {
		return exact, err
	}
	ix, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if a, ok := ix.Match(pattern); ok {
		return &a, nil
	}
	return nil, nil
}

// Learn records that description was assigned to payeeID. It creates the
// alias for the description's merchant pattern or bumps its counter and
// repoints it. It returns the pattern used.
func (s *Store) Learn(ctx context.Context, userID, payeeID uuid.UUID, description string) (string, error) {
	pattern := normalize.MerchantPattern(description)
	if pattern == "" {
		return "", ErrEmptyPattern
	}
	err := s.repo.Upsert(ctx, &models.PayeeAlias{
		UserID:            userID,
		PayeeID:           payeeID,
		BankDescription:   description,
		NormalizedPattern: pattern,
		Source:            models.AliasImportLearn,
	})
	return pattern, err
}

// SetManual creates or overwrites a user-defined alias for description.
func (s *Store) SetManual(ctx context.Context, userID, payeeID uuid.UUID, description string) (*models.PayeeAlias, error) {
	pattern := normalize.MerchantPattern(description)
	if pattern == "" {
		return nil, ErrEmptyPattern
	}
	alias := &models.PayeeAlias{
		UserID:            userID,
		PayeeID:           payeeID,
		BankDescription:   description,
		NormalizedPattern: pattern,
	}
	if err := s.repo.SetManual(ctx, alias); err != nil {
		return nil, err
	}
	return s.repo.FindByPattern(ctx, userID, pattern)
}
