package filestore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statement-import-backend/internal/testutil"
)

func TestDBStore(t *testing.T) {
	ctx := context.Background()
	store := NewDBStore(testutil.NewDB(t))
	id := uuid.New()

	_, err := store.Load(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, id, []byte("date,amount\n")))
	data, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "date,amount\n", string(data))

	require.NoError(t, store.Save(ctx, id, []byte("replaced")))
	data, err = store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(data))
}
