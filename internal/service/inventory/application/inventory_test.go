package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/inventory/infrastructure"
	"stockflow/internal/service/inventory/infrastructure/adapter"
)

func newInventoryService(t *testing.T) (*InventoryService, *infrastructure.MemoryStockStore, *adapter.MemoryBroker) {
	t.Helper()
	store := infrastructure.NewMemoryStockStore(domain.StockDefaults{Name: "token", InitialQuantity: 100})
	broker := adapter.NewMemoryBroker()
	return NewInventoryService(store, broker, domain.DefaultTopics(), noop.NewTracerProvider().Tracer("test")), store, broker
}

func TestInventoryService_GetInventory(t *testing.T) {
	svc, store, _ := newInventoryService(t)
	store.Seed(1, "widget", 5)

	rec, err := svc.GetInventory(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &domain.StockRecord{ID: 1, Name: "widget", Quantity: 5}, rec)

	_, err = svc.GetInventory(context.Background(), 2)
	assert.True(t, errors.Is(err, domain.ErrItemNotFound))
}

func TestInventoryService_AdjustInventoryHasNoFloor(t *testing.T) {
	svc, store, _ := newInventoryService(t)
	store.Seed(1, "widget", 5)

	rec, err := svc.AdjustInventory(context.Background(), 1, -8)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), rec.Quantity)

	_, err = svc.AdjustInventory(context.Background(), 99, 1)
	assert.True(t, errors.Is(err, domain.ErrItemNotFound))
}

func TestInventoryService_UpdateInventory(t *testing.T) {
	tests := []struct {
		name        string
		seed        bool
		delta       int64
		wantErr     error
		wantQty     int64
		wantSuccess bool
	}{
		{name: "applies delta", seed: true, delta: -4, wantQty: 1, wantSuccess: true},
		{name: "rejects below zero", seed: true, delta: -6, wantErr: domain.ErrInsufficientStock, wantQty: 5},
		{name: "missing item", delta: 1, wantErr: domain.ErrItemNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, broker := newInventoryService(t)
			if tt.seed {
				store.Seed(1, "widget", 5)
			}

			_, err := svc.UpdateInventory(context.Background(), 1, tt.delta)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				require.NoError(t, err)
			}
			if tt.seed {
				rec, err := store.Get(context.Background(), 1)
				require.NoError(t, err)
				assert.Equal(t, tt.wantQty, rec.Quantity)
			}

			notices := broker.Published("inventory_update")
			require.Len(t, notices, 1)
			var notice domain.StockAdjustmentNotice
			require.NoError(t, json.Unmarshal(notices[0].Payload, &notice))
			assert.Equal(t, domain.StockAdjustmentNotice{ItemID: 1, Success: tt.wantSuccess}, notice)
		})
	}
}

func TestInventoryService_EnsureItems(t *testing.T) {
	svc, store, _ := newInventoryService(t)
	store.Seed(2, "seeded", 7)

	require.NoError(t, svc.EnsureItems(context.Background(), []int64{1, 2}))

	rec, err := svc.GetInventory(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &domain.StockRecord{ID: 1, Name: "token", Quantity: 100}, rec)

	rec, err = svc.GetInventory(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.Quantity, "existing records are left untouched")
}

func TestInventoryService_EnsureItemsStoreFailure(t *testing.T) {
	store := &mockStockStore{}
	store.On("GetOrCreate", mock.Anything, int64(1)).Return(nil, errors.New("connection refused"))
	svc := NewInventoryService(store, adapter.NewMemoryBroker(), domain.DefaultTopics(), noop.NewTracerProvider().Tracer("test"))

	err := svc.EnsureItems(context.Background(), []int64{1, 2})
	assert.ErrorContains(t, err, "ensure item 1")
	store.AssertNumberOfCalls(t, "GetOrCreate", 1)
}
