package application

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"stockflow/internal/service/inventory/domain"
)

type mockStockStore struct {
	mock.Mock
}

func (m *mockStockStore) record(args mock.Arguments) (*domain.StockRecord, error) {
	rec, _ := args.Get(0).(*domain.StockRecord)
	return rec, args.Error(1)
}

func (m *mockStockStore) Get(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	return m.record(m.Called(ctx, itemID))
}

func (m *mockStockStore) GetOrCreate(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	return m.record(m.Called(ctx, itemID))
}

func (m *mockStockStore) Reserve(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error) {
	return m.record(m.Called(ctx, itemID, amount))
}

func (m *mockStockStore) Restock(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error) {
	return m.record(m.Called(ctx, itemID, amount))
}

func (m *mockStockStore) Adjust(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	return m.record(m.Called(ctx, itemID, delta))
}

func (m *mockStockStore) AdjustBounded(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	return m.record(m.Called(ctx, itemID, delta))
}

type mockGuard struct {
	mock.Mock
}

func (m *mockGuard) Claim(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockGuard) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// failingPublisher 总是返回错误，并记录被调用的次数
type failingPublisher struct {
	mu    sync.Mutex
	calls int
}

func (p *failingPublisher) Publish(context.Context, string, []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return errors.New("broker down")
}
