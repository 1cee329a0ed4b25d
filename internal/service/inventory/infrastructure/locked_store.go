package infrastructure

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/inventory/port"
)

// LockedStockStore 在每次变更前获取商品粒度的分布式锁，
// 让多个副本对同一商品的 检查+修改 串行执行。读操作不加锁。
type LockedStockStore struct {
	next   port.StockStore
	locker port.Locker
}

func NewLockedStockStore(next port.StockStore, locker port.Locker) *LockedStockStore {
	return &LockedStockStore{next: next, locker: locker}
}

func lockResource(itemID int64) string {
	return fmt.Sprintf("item-%d", itemID)
}

func (s *LockedStockStore) Get(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	return s.next.Get(ctx, itemID)
}

func (s *LockedStockStore) GetOrCreate(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	return withLock(ctx, s.locker, itemID, func() (*domain.StockRecord, error) {
		return s.next.GetOrCreate(ctx, itemID)
	})
}

func (s *LockedStockStore) Reserve(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error) {
	return withLock(ctx, s.locker, itemID, func() (*domain.StockRecord, error) {
		return s.next.Reserve(ctx, itemID, amount)
	})
}

func (s *LockedStockStore) Restock(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error) {
	return withLock(ctx, s.locker, itemID, func() (*domain.StockRecord, error) {
		return s.next.Restock(ctx, itemID, amount)
	})
}

func (s *LockedStockStore) Adjust(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	return withLock(ctx, s.locker, itemID, func() (*domain.StockRecord, error) {
		return s.next.Adjust(ctx, itemID, delta)
	})
}

func (s *LockedStockStore) AdjustBounded(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	return withLock(ctx, s.locker, itemID, func() (*domain.StockRecord, error) {
		return s.next.AdjustBounded(ctx, itemID, delta)
	})
}

func withLock(ctx context.Context, locker port.Locker, itemID int64, fn func() (*domain.StockRecord, error)) (*domain.StockRecord, error) {
	release, err := locker.Acquire(ctx, lockResource(itemID))
	if err != nil {
		return nil, errors.Wrapf(err, "acquire lock for item %d", itemID)
	}
	defer release()
	return fn()
}
