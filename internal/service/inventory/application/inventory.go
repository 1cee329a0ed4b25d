package application

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockflow/internal/pkg/logger"
	"stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/inventory/port"
)

// InventoryService 是同步 API 背后的应用服务，直接读写库存，不经过预留引擎
type InventoryService struct {
	store     port.StockStore
	publisher port.Publisher
	topics    domain.Topics
	tracer    trace.Tracer
}

func NewInventoryService(store port.StockStore, publisher port.Publisher, topics domain.Topics, tracer trace.Tracer) *InventoryService {
	return &InventoryService{store: store, publisher: publisher, topics: topics, tracer: tracer}
}

// GetInventory 返回库存快照，从未创建过的记录返回 domain.ErrItemNotFound
func (s *InventoryService) GetInventory(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.GetInventory", trace.WithAttributes(attribute.Int64("item.id", itemID)))
	defer span.End()

	record, err := s.store.Get(ctx, itemID)
	if err != nil && !errors.Is(err, domain.ErrItemNotFound) {
		recordSpanError(span, err, "get inventory failed")
	}
	return record, err
}

// AdjustInventory 原子地执行 quantity += delta，不校验下限
func (s *InventoryService) AdjustInventory(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.AdjustInventory", trace.WithAttributes(
		attribute.Int64("item.id", itemID),
		attribute.Int64("quantity.change", delta),
	))
	defer span.End()

	record, err := s.store.Adjust(ctx, itemID, delta)
	if err != nil {
		if !errors.Is(err, domain.ErrItemNotFound) {
			recordSpanError(span, err, "adjust inventory failed")
		}
		return nil, err
	}
	logger.Ctx(ctx).Info().Int64("item_id", itemID).Int64("delta", delta).Int64("quantity", record.Quantity).Msg("Inventory adjusted")
	return record, nil
}

// UpdateInventory 是带下限校验的调整：结果小于 0 时拒绝。
// 无论成败都会在 inventory_update 上发布 {item_id, success} 通知。
func (s *InventoryService) UpdateInventory(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.UpdateInventory", trace.WithAttributes(
		attribute.Int64("item.id", itemID),
		attribute.Int64("quantity.change", delta),
	))
	defer span.End()

	record, err := s.store.AdjustBounded(ctx, itemID, delta)
	s.notify(ctx, domain.StockAdjustmentNotice{ItemID: itemID, Success: err == nil})
	if err != nil {
		if !errors.Is(err, domain.ErrItemNotFound) && !errors.Is(err, domain.ErrInsufficientStock) {
			recordSpanError(span, err, "update inventory failed")
		}
		return nil, err
	}
	return record, nil
}

// EnsureItems 按默认值创建尚不存在的商品，已存在的记录保持不变
func (s *InventoryService) EnsureItems(ctx context.Context, itemIDs []int64) error {
	ctx, span := s.tracer.Start(ctx, "inventory.EnsureItems", trace.WithAttributes(attribute.Int("item.count", len(itemIDs))))
	defer span.End()

	for _, itemID := range itemIDs {
		record, err := s.store.GetOrCreate(ctx, itemID)
		if err != nil {
			err = errors.Wrapf(err, "ensure item %d", itemID)
			recordSpanError(span, err, "ensure items failed")
			return err
		}
		logger.Ctx(ctx).Debug().Int64("item_id", itemID).Int64("quantity", record.Quantity).Msg("Item ensured")
	}
	return nil
}

// notify 发布失败只记录日志，不影响同步调用的结果
func (s *InventoryService) notify(ctx context.Context, notice domain.StockAdjustmentNotice) {
	payload, err := json.Marshal(notice)
	if err == nil {
		err = s.publisher.Publish(ctx, s.topics.InventoryUpdate, payload)
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("item_id", notice.ItemID).Msg("Failed to publish stock adjustment notice")
	}
}
