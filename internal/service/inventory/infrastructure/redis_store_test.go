package infrastructure

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"stockflow/internal/pkg/redis"
	"stockflow/internal/service/inventory/port"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(context.Background(), redis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStockStore(t *testing.T) {
	runStockStoreContract(t, func(t *testing.T) (port.StockStore, func(int64, int64)) {
		mr, client := newTestRedis(t)
		store, err := NewRedisStockStore(client, contractDefaults)
		require.NoError(t, err)
		return store, func(itemID, quantity int64) {
			mr.HSet(stockKey(itemID), "name", "seeded", "quantity", strconv.FormatInt(quantity, 10))
		}
	})
}

func TestRedisStockStore_StoreUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	store, err := NewRedisStockStore(client, contractDefaults)
	require.NoError(t, err)
	mr.Close()

	_, err = store.Reserve(context.Background(), 1, 1)
	require.Error(t, err)
}
