package infrastructure

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/inventory/port"
)

var contractDefaults = domain.StockDefaults{Name: "token", InitialQuantity: 100}

// storeFactory 返回一个空的库存实现，以及把某个商品预置为指定数量的函数
type storeFactory func(t *testing.T) (port.StockStore, func(itemID, quantity int64))

func runStockStoreContract(t *testing.T, factory storeFactory) {
	ctx := context.Background()

	t.Run("get missing item", func(t *testing.T) {
		store, _ := factory(t)
		_, err := store.Get(ctx, 1)
		assert.True(t, errors.Is(err, domain.ErrItemNotFound))
	})

	t.Run("get or create uses defaults once", func(t *testing.T) {
		store, _ := factory(t)
		rec, err := store.GetOrCreate(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, &domain.StockRecord{ID: 1, Name: "token", Quantity: 100}, rec)

		_, err = store.Adjust(ctx, 1, -30)
		require.NoError(t, err)
		rec, err = store.GetOrCreate(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(70), rec.Quantity)
	})

	t.Run("reserve debits when stock suffices", func(t *testing.T) {
		store, seed := factory(t)
		seed(1, 10)
		rec, err := store.Reserve(ctx, 1, 4)
		require.NoError(t, err)
		assert.Equal(t, int64(6), rec.Quantity)
	})

	t.Run("reserve rejects without mutation", func(t *testing.T) {
		store, seed := factory(t)
		seed(1, 6)
		rec, err := store.Reserve(ctx, 1, 10)
		assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
		require.NotNil(t, rec)
		assert.Equal(t, int64(6), rec.Quantity)

		got, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(6), got.Quantity)
	})

	t.Run("reserve creates missing item", func(t *testing.T) {
		store, _ := factory(t)
		rec, err := store.Reserve(ctx, 5, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(99), rec.Quantity)
	})

	t.Run("restock credits and creates", func(t *testing.T) {
		store, seed := factory(t)
		seed(1, 6)
		rec, err := store.Restock(ctx, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(9), rec.Quantity)

		rec, err = store.Restock(ctx, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(103), rec.Quantity)
	})

	t.Run("adjust has no floor and does not create", func(t *testing.T) {
		store, seed := factory(t)
		seed(1, 2)
		rec, err := store.Adjust(ctx, 1, -5)
		require.NoError(t, err)
		assert.Equal(t, int64(-3), rec.Quantity)

		_, err = store.Adjust(ctx, 2, 1)
		assert.True(t, errors.Is(err, domain.ErrItemNotFound))
	})

	t.Run("adjust bounded keeps floor", func(t *testing.T) {
		store, seed := factory(t)
		seed(1, 2)
		_, err := store.AdjustBounded(ctx, 1, -3)
		assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

		rec, err := store.AdjustBounded(ctx, 1, -2)
		require.NoError(t, err)
		assert.Zero(t, rec.Quantity)

		_, err = store.AdjustBounded(ctx, 2, 1)
		assert.True(t, errors.Is(err, domain.ErrItemNotFound))
	})

	t.Run("concurrent reservations never oversell", func(t *testing.T) {
		store, seed := factory(t)
		const quantity, requests = 20, 50
		seed(1, quantity)

		var accepted, rejected atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < requests; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Reserve(ctx, 1, 1)
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, domain.ErrInsufficientStock):
					rejected.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(quantity), accepted.Load())
		assert.Equal(t, int64(requests-quantity), rejected.Load())
		rec, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, rec.Quantity)
	})
}

func TestMemoryStockStore(t *testing.T) {
	runStockStoreContract(t, func(t *testing.T) (port.StockStore, func(int64, int64)) {
		store := NewMemoryStockStore(contractDefaults)
		return store, func(itemID, quantity int64) { store.Seed(itemID, "seeded", quantity) }
	})
}

func TestMemoryStockStore_CancelledContext(t *testing.T) {
	store := NewMemoryStockStore(contractDefaults)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Reserve(ctx, 1, 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Get(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}
