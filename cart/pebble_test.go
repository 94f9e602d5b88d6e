package cart

import (
	"context"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gofalre.io/bulls/models"
)

func TestPebbleStorageSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := pebble.Open(dir, &pebble.Options{})
	require.NoError(t, err)
	backend := NewPebbleBackend(db)

	raw, err := backend.Storage("s1").Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, raw)

	store := NewStore(backend.Storage("s1"), nil, nil, zap.NewNop())
	require.NoError(t, store.AddToCart(ctx, &models.Product{ID: "p1", Model: "A", Price: 25}, 2))
	require.NoError(t, db.Close())

	db, err = pebble.Open(dir, &pebble.Options{})
	require.NoError(t, err)
	defer db.Close()

	cart := NewStore(NewPebbleBackend(db).Storage("s1"), nil, nil, zap.NewNop()).GetCart(ctx)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 50.0, cart.Total)
}
