package infrastructure

import (
	"context"
	"sync"

	"stockflow/internal/service/inventory/domain"
)

// MemoryStockStore 是进程内的库存实现，用于本地运行和测试。
// 单把互斥锁覆盖 检查+修改，保证条件扣减的原子性。
type MemoryStockStore struct {
	mu       sync.Mutex
	items    map[int64]domain.StockRecord
	defaults domain.StockDefaults
}

func NewMemoryStockStore(defaults domain.StockDefaults) *MemoryStockStore {
	return &MemoryStockStore{items: make(map[int64]domain.StockRecord), defaults: defaults}
}

// Seed 直接写入一条记录，覆盖已有值
func (s *MemoryStockStore) Seed(itemID int64, name string, quantity int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[itemID] = domain.StockRecord{ID: itemID, Name: name, Quantity: quantity}
}

func (s *MemoryStockStore) Get(_ context.Context, itemID int64) (*domain.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[itemID]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return &rec, nil
}

func (s *MemoryStockStore) GetOrCreate(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	return s.apply(ctx, itemID, 0, true, false)
}

func (s *MemoryStockStore) Reserve(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error) {
	return s.apply(ctx, itemID, -amount, true, true)
}

func (s *MemoryStockStore) Restock(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error) {
	return s.apply(ctx, itemID, amount, true, false)
}

func (s *MemoryStockStore) Adjust(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	return s.apply(ctx, itemID, delta, false, false)
}

func (s *MemoryStockStore) AdjustBounded(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	return s.apply(ctx, itemID, delta, false, true)
}

func (s *MemoryStockStore) apply(ctx context.Context, itemID, delta int64, create, floor bool) (*domain.StockRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.items[itemID]
	if !ok {
		if !create {
			return nil, domain.ErrItemNotFound
		}
		rec = *s.defaults.NewStockRecord(itemID)
		s.items[itemID] = rec
	}
	if floor && rec.Quantity+delta < 0 {
		return &rec, domain.ErrInsufficientStock
	}
	rec.Quantity += delta
	s.items[itemID] = rec
	return &rec, nil
}
