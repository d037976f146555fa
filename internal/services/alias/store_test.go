package alias

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statement-import-backend/internal/models"
	"statement-import-backend/internal/repository"
	"statement-import-backend/internal/testutil"
)

func TestIndex_Match(t *testing.T) {
	coffee := models.PayeeAlias{ID: uuid.New(), PayeeID: uuid.New(), NormalizedPattern: "cafe du coin", TimesMatched: 1}
	amazon := models.PayeeAlias{ID: uuid.New(), PayeeID: uuid.New(), NormalizedPattern: "amazon", TimesMatched: 2}
	amazonMkt := models.PayeeAlias{ID: uuid.New(), PayeeID: uuid.New(), NormalizedPattern: "amazon mktp", TimesMatched: 9}
	ix := NewIndex([]models.PayeeAlias{coffee, amazon, amazonMkt})

	tests := []struct {
		name    string
		pattern string
		want    *models.PayeeAlias
	}{
		{"exact", "cafe du coin", &coffee},
		{"exact beats more used substring", "amazon", &amazon},
		{"alias inside pattern", "le cafe du coin paris", &coffee},
		{"pattern inside alias", "coin", &coffee},
		{"most used wins", "amazon mktp fr", &amazonMkt},
		{"no match", "edf", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ix.Match(tt.pattern)
			if tt.want == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want.ID, got.ID)
		})
	}
}

func TestIndex_TieBreakPrefersLongerPattern(t *testing.T) {
	short := models.PayeeAlias{ID: uuid.New(), NormalizedPattern: "uber", TimesMatched: 3}
	long := models.PayeeAlias{ID: uuid.New(), NormalizedPattern: "uber eats", TimesMatched: 3}
	ix := NewIndex([]models.PayeeAlias{short, long})

	got, ok := ix.Match("uber eats paris")
	require.True(t, ok)
	assert.Equal(t, long.ID, got.ID)
}

func TestIndex_Suggest(t *testing.T) {
	coffee := models.PayeeAlias{ID: uuid.New(), NormalizedPattern: "cafe du coin"}
	ix := NewIndex([]models.PayeeAlias{coffee})

	got, ok := ix.Suggest("CARTE 15/01/25 CAFE DU COIN CB*1234")
	require.True(t, ok)
	assert.Equal(t, coffee.ID, got.ID)

	_, ok = ix.Suggest("CB*1234")
	assert.False(t, ok)
}

func TestStore_LearnConverges(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	store := NewStore(repository.NewAliasRepository(db))
	userID, payee := uuid.New(), uuid.New()

	previous := 0
	for _, desc := range []string{
		"CARTE 15/01/25 CAFE DU COIN CB*1234",
		"CARTE 20/01/25 CAFE DU COIN CB*1234",
		"CB CAFE DU COIN",
	} {
		pattern, err := store.Learn(ctx, userID, payee, desc)
		require.NoError(t, err)
		assert.Equal(t, "cafe du coin", pattern)

		aliases, err := store.List(ctx, userID)
		require.NoError(t, err)
		require.Len(t, aliases, 1)
		assert.Greater(t, aliases[0].TimesMatched, previous)
		assert.Equal(t, desc, aliases[0].BankDescription)
		previous = aliases[0].TimesMatched
	}

	reassigned := uuid.New()
	_, err := store.Learn(ctx, userID, reassigned, "CB CAFE DU COIN")
	require.NoError(t, err)
	got, err := store.Lookup(ctx, userID, "cafe du coin")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, reassigned, got.PayeeID)
	assert.Equal(t, 4, got.TimesMatched)

	_, err = store.Learn(ctx, userID, payee, "CB*1234")
	assert.ErrorIs(t, err, ErrEmptyPattern)
}

func TestStore_Suggest(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	store := NewStore(repository.NewAliasRepository(db))
	userID, payee := uuid.New(), uuid.New()

	manual, err := store.SetManual(ctx, userID, payee, "PRLV SEPA EDF")
	require.NoError(t, err)
	require.NotNil(t, manual)
	assert.Equal(t, "edf", manual.NormalizedPattern)
	assert.Equal(t, models.AliasManual, manual.Source)

	got, err := store.Suggest(ctx, userID, "PRLV SEPA EDF")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, payee, got.PayeeID)

	got, err = store.Suggest(ctx, userID, "PRLV SEPA EDF CLIENTS PARTICULIERS")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, payee, got.PayeeID)

	got, err = store.Suggest(ctx, uuid.New(), "PRLV SEPA EDF")
	require.NoError(t, err)
	assert.Nil(t, got)
}
