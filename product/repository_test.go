package product

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gofalre.io/bulls/docstore"
	"gofalre.io/bulls/models"
	"gofalre.io/bulls/models/enum"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *memoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return false, errors.New("cache unavailable")
	}
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (c *memoryCache) Set(_ context.Context, key string, value any, ttl ...time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	if len(ttl) > 0 {
		c.ttls[key] = ttl[0]
	}
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(docstore.NewMemory(), newMemoryCache(), zap.NewNop())

	created, err := repo.Create(ctx, &models.Product{Model: "Bulls Copperhead", Category: enum.ProductCategoryEbike, Price: 2999})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.NotNil(t, created.CreatedAt)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bulls Copperhead", got.Model)
	assert.Equal(t, models.Number(2999), got.Price)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMalformedPriceReadsAsZero(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	doc, err := store.Create(ctx, Collection, map[string]any{"model": "Broken", "price": "abc", "discountPrice": "149.5"})
	require.NoError(t, err)

	repo := NewRepository(store, nil, zap.NewNop())
	got, err := repo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Number(0), got.Price)
	assert.Equal(t, models.Number(149.5), got.DiscountPrice)
}

func TestGetIsServedFromCache(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	cache := newMemoryCache()
	repo := NewRepository(store, cache, zap.NewNop())

	created, err := repo.Create(ctx, &models.Product{Model: "A", Price: 10})
	require.NoError(t, err)
	_, err = repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, cache.has(productKey(created.ID)))

	// 繞過 repository 直接修改，快取仍回傳舊值
	require.NoError(t, store.Patch(ctx, Collection, created.ID, map[string]any{"price": 20}))
	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Number(10), got.Price)
}

func TestPatchInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	cache := newMemoryCache()
	repo := NewRepository(docstore.NewMemory(), cache, zap.NewNop())

	created, err := repo.Create(ctx, &models.Product{Model: "A", Price: 10})
	require.NoError(t, err)
	_, err = repo.Get(ctx, created.ID)
	require.NoError(t, err)
	_, err = repo.List(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Patch(ctx, created.ID, map[string]any{"price": 12.5}))
	assert.False(t, cache.has(productKey(created.ID)))
	assert.False(t, cache.has(allProductKey))

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Number(12.5), got.Price)

	assert.ErrorIs(t, repo.Patch(ctx, "missing", map[string]any{"price": 1}), ErrNotFound)
}

func TestCacheFailureFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	cache := newMemoryCache()
	cache.failGet = true
	repo := NewRepository(docstore.NewMemory(), cache, zap.NewNop())

	created, err := repo.Create(ctx, &models.Product{Model: "A"})
	require.NoError(t, err)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Model)
}

func TestListByCategory(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(docstore.NewMemory(), newMemoryCache(), zap.NewNop())

	_, err := repo.Create(ctx, &models.Product{Model: "E1", Category: enum.ProductCategoryEbike})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Product{Model: "B1", Category: enum.ProductCategoryBattery})
	require.NoError(t, err)

	ebikes, err := repo.ListByCategory(ctx, enum.ProductCategoryEbike)
	require.NoError(t, err)
	require.Len(t, ebikes, 1)
	assert.Equal(t, "E1", ebikes[0].Model)

	all, err := repo.ListByCategory(ctx, enum.ProductCategoryNone)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.ListByCategory(ctx, "scooter")
	assert.True(t, models.IsValidation(err))
}

func TestDeleteRemovesProduct(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(docstore.NewMemory(), newMemoryCache(), zap.NewNop())

	created, err := repo.Create(ctx, &models.Product{Model: "A"})
	require.NoError(t, err)
	_, err = repo.List(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))
	require.NoError(t, repo.Delete(ctx, created.ID))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestListCacheIsShortLived(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	cache := newMemoryCache()
	repo := NewRepository(store, cache, zap.NewNop())

	doc, err := store.Create(ctx, Collection, map[string]any{"model": "Sonic", "category": "ebike"})
	require.NoError(t, err)

	_, err = repo.List(ctx)
	require.NoError(t, err)
	_, err = repo.ListByCategory(ctx, enum.ProductCategoryEbike)
	require.NoError(t, err)
	_, err = repo.Get(ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, listCacheTTL, cache.ttls[allProductKey])
	assert.Equal(t, listCacheTTL, cache.ttls[categoryKey(enum.ProductCategoryEbike)])
	assert.Equal(t, cacheTTL, cache.ttls[productKey(doc.ID)])
}

func TestListFreshSkipsCache(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	cache := newMemoryCache()
	repo := NewRepository(store, cache, zap.NewNop())

	doc, err := store.Create(ctx, Collection, map[string]any{"model": "Sonic", "price": 1000.0})
	require.NoError(t, err)
	_, err = repo.List(ctx)
	require.NoError(t, err)

	// 直接改寫儲存，讓列表快取變成舊資料
	require.NoError(t, store.Patch(ctx, Collection, doc.ID, map[string]any{"price": 900.0}))

	cached, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, models.Number(1000), cached[0].Price)

	fresh, err := repo.ListFresh(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, models.Number(900), fresh[0].Price)

	// ListFresh 不會寫回快取
	cached, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Number(1000), cached[0].Price)
}
