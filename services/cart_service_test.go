package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/storefront-api/cache"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
)

func newTestCartService(t *testing.T, store *memStore) (CartService, cache.CartCache) {
	client := newTestRedis(t)
	cartCache := cache.NewRedisCartCache(client)
	return NewCartService(store, cartCache, cache.NewRedisGuard(client), nil, "usd", testLogger), cartCache
}

func TestCart_AddTwiceKeepsSingleRow(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)
	ctx := context.Background()
	accountID := uuid.New()
	p := store.seedProduct("Ryzen 7 7800X3D", 44900, 10)

	_, err := svc.Add(ctx, accountID, p.ID, 2, "")
	require.NoError(t, err)
	view, err := svc.Add(ctx, accountID, p.ID, 3, "")
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, int64(5*44900), view.Subtotal)
	assert.Equal(t, 5, view.ItemCount)
	assert.Len(t, store.cartItems, 1)
}

func TestCart_AddBeyondStockRejected(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)
	ctx := context.Background()
	accountID := uuid.New()
	p := store.seedProduct("RTX 4070", 59900, 2)

	_, err := svc.Add(ctx, accountID, p.ID, 2, "")
	require.NoError(t, err)

	_, err = svc.Add(ctx, accountID, p.ID, 1, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	view, err := svc.Get(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Items[0].Quantity)
}

func TestCart_AddRejectsBadInput(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)
	ctx := context.Background()

	_, err := svc.Add(ctx, uuid.New(), uuid.New(), 0, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = svc.Add(ctx, uuid.New(), uuid.New(), 1, "")
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)

	inactive := store.seedProduct("Old Case", 4900, 5)
	inactive.IsActive = false
	store.products[inactive.ID] = inactive
	_, err = svc.Add(ctx, uuid.New(), inactive.ID, 1, "")
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
}

func TestCart_AddIdempotencyKey(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)
	ctx := context.Background()
	accountID := uuid.New()
	p := store.seedProduct("DDR5 32GB", 10900, 10)

	_, err := svc.Add(ctx, accountID, p.ID, 1, "key-1")
	require.NoError(t, err)
	view, err := svc.Add(ctx, accountID, p.ID, 1, "key-1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Items[0].Quantity)

	view, err = svc.Add(ctx, accountID, p.ID, 1, "key-2")
	require.NoError(t, err)
	assert.Equal(t, 2, view.Items[0].Quantity)
}

func TestCart_FailedAddReleasesIdempotencyKey(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)
	ctx := context.Background()
	accountID := uuid.New()
	p := store.seedProduct("NVMe 2TB", 12900, 1)

	_, err := svc.Add(ctx, accountID, p.ID, 2, "retry-me")
	require.Error(t, err)

	view, err := svc.Add(ctx, accountID, p.ID, 1, "retry-me")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Items[0].Quantity)
}

func TestCart_IncreaseDecreaseRemove(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)
	ctx := context.Background()
	accountID := uuid.New()
	p := store.seedProduct("Noctua NH-D15", 10990, 2)

	_, err := svc.Increase(ctx, accountID, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrCartItemNotFound)

	_, err = svc.Add(ctx, accountID, p.ID, 1, "")
	require.NoError(t, err)

	view, err := svc.Increase(ctx, accountID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Items[0].Quantity)

	_, err = svc.Increase(ctx, accountID, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	view, err = svc.Decrease(ctx, accountID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Items[0].Quantity)

	view, err = svc.Decrease(ctx, accountID, p.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = svc.Remove(ctx, accountID, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrCartItemNotFound)
}

func TestCart_SetQuantity(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)
	ctx := context.Background()
	accountID := uuid.New()
	p := store.seedProduct("Corsair RM850x", 13900, 4)

	_, err := svc.Add(ctx, accountID, p.ID, 1, "")
	require.NoError(t, err)

	view, err := svc.SetQuantity(ctx, accountID, p.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Items[0].Quantity)

	_, err = svc.SetQuantity(ctx, accountID, p.ID, 5)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	_, err = svc.SetQuantity(ctx, accountID, p.ID, -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	view, err = svc.SetQuantity(ctx, accountID, p.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestCart_ClearIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)
	ctx := context.Background()
	accountID := uuid.New()
	a := store.seedProduct("Fan A", 1900, 10)
	b := store.seedProduct("Fan B", 2100, 10)

	_, err := svc.Add(ctx, accountID, a.ID, 1, "")
	require.NoError(t, err)
	_, err = svc.Add(ctx, accountID, b.ID, 2, "")
	require.NoError(t, err)

	view, err := svc.Clear(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.Subtotal)

	_, err = svc.Clear(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, store.carts, 1)
}

func TestCart_UnavailableItemsExcludedFromTotals(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)
	ctx := context.Background()
	accountID := uuid.New()
	keep := store.seedProduct("Keyboard", 8900, 10)
	drop := store.seedProduct("Mouse", 4900, 10)

	_, err := svc.Add(ctx, accountID, keep.ID, 1, "")
	require.NoError(t, err)
	_, err = svc.Add(ctx, accountID, drop.ID, 1, "")
	require.NoError(t, err)

	require.NoError(t, store.Products().Delete(ctx, drop.ID))

	view, err := svc.Get(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, int64(8900), view.Subtotal)
	assert.Equal(t, 1, view.ItemCount)
	assert.False(t, view.Items[1].Available)
	assert.Zero(t, view.Items[1].LineTotal)
}

func TestCart_GetEmptyWithoutRow(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)

	view, err := svc.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, view.Items)
	assert.Empty(t, view.Items)
	assert.Equal(t, "usd", view.Currency)
	assert.Empty(t, store.carts)
}

func TestCart_QuantityCapPreventsOverflow(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)
	ctx := context.Background()
	accountID := uuid.New()
	p := store.seedProduct("Samsung 990 Pro 2TB", 16999, 20000)

	_, err := svc.Add(ctx, accountID, p.ID, math.MaxInt, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = svc.Add(ctx, accountID, p.ID, models.MaxCartQuantity, "")
	require.NoError(t, err)

	_, err = svc.Add(ctx, accountID, p.ID, 1, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = svc.SetQuantity(ctx, accountID, p.ID, models.MaxCartQuantity+1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	view, err := svc.Get(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, models.MaxCartQuantity, view.ItemCount)
}

func TestCart_MutationInvalidatesCache(t *testing.T) {
	store := newMemStore()
	svc, cartCache := newTestCartService(t, store)
	ctx := context.Background()
	accountID := uuid.New()
	p := store.seedProduct("Thermal Paste", 900, 10)

	_, err := cartCache.Set(ctx, &models.CartView{AccountID: accountID, Items: []models.CartLine{}}, 0)
	require.NoError(t, err)

	_, err = svc.Add(ctx, accountID, p.ID, 1, "")
	require.NoError(t, err)

	_, err = cartCache.Get(ctx, accountID)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

// heldCartCache parks Set calls until release is closed.
type heldCartCache struct {
	*cache.RedisCartCache
	release chan struct{}
	done    chan bool
}

func (c *heldCartCache) Set(ctx context.Context, view *models.CartView, gen int64) (bool, error) {
	<-c.release
	stored, err := c.RedisCartCache.Set(ctx, view, gen)
	c.done <- stored
	return stored, err
}

func TestCart_LateCacheWriteDoesNotOutliveMutation(t *testing.T) {
	store := newMemStore()
	client := newTestRedis(t)
	held := &heldCartCache{
		RedisCartCache: cache.NewRedisCartCache(client),
		release:        make(chan struct{}),
		done:           make(chan bool, 1),
	}
	svc := NewCartService(store, held, cache.NewRedisGuard(client), nil, "usd", testLogger)
	ctx := context.Background()
	accountID := uuid.New()
	p := store.seedProduct("Noctua NH-D15", 10999, 10)

	view, err := svc.Get(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.ItemCount)

	_, err = svc.Add(ctx, accountID, p.ID, 2, "")
	require.NoError(t, err)

	close(held.release)
	select {
	case stored := <-held.done:
		assert.False(t, stored, "view loaded before the add must not be cached")
	case <-time.After(2 * time.Second):
		t.Fatal("cache write never ran")
	}

	view, err = svc.Get(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.ItemCount)
}

func TestCart_MergeClampsToStock(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestCartService(t, store)
	ctx := context.Background()
	accountID := uuid.New()
	p := store.seedProduct("Monitor", 29900, 3)
	q := store.seedProduct("Cable", 999, 50)
	missing := uuid.New()

	_, err := svc.Add(ctx, accountID, p.ID, 1, "")
	require.NoError(t, err)

	resp, err := svc.Merge(ctx, accountID, []models.MergeCartItem{
		{ProductID: p.ID, Quantity: 5},
		{ProductID: q.ID, Quantity: 2},
		{ProductID: missing, Quantity: 1},
	})
	require.NoError(t, err)

	byProduct := map[uuid.UUID]int{}
	for _, line := range resp.Cart.Items {
		byProduct[line.ProductID] = line.Quantity
	}
	assert.Equal(t, 3, byProduct[p.ID])
	assert.Equal(t, 2, byProduct[q.ID])

	require.Len(t, resp.Adjustments, 2)
	assert.Equal(t, models.CartAdjustment{ProductID: p.ID, Requested: 5, Applied: 2, Reason: "insufficient_stock"}, resp.Adjustments[0])
	assert.Equal(t, "unavailable", resp.Adjustments[1].Reason)
}
