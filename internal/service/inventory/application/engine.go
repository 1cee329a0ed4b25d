// internal/service/inventory/application/engine.go
package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockflow/internal/pkg/logger"
	"stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/inventory/port"
)

// ReservationEngine 根据支付和配送结果预留、释放或回补库存，并发布处理结果。
// 每次调用最多修改一次库存、最多发布一条结果，内部不做重试。
type ReservationEngine struct {
	store     port.StockStore
	publisher port.Publisher
	guard     port.IdempotencyGuard
	restock   port.RestockPolicy
	recorder  port.Recorder
	topics    domain.Topics
	tracer    trace.Tracer
}

// NewReservationEngine 创建引擎。guard、restock、recorder 可以为 nil：
// 此时不去重、只回补 FAILED 的配送、不记录指标。
func NewReservationEngine(store port.StockStore, publisher port.Publisher, guard port.IdempotencyGuard, restock port.RestockPolicy, recorder port.Recorder, topics domain.Topics, tracer trace.Tracer) *ReservationEngine {
	if guard == nil {
		guard = nopGuard{}
	}
	if restock == nil {
		restock = failedDeliveryPolicy{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &ReservationEngine{
		store: store, publisher: publisher,
		guard: guard, restock: restock, recorder: recorder,
		topics: topics, tracer: tracer,
	}
}

// ApplyPaymentOutcome 处理一次支付结果。
// SUCCESS 时条件扣减库存，库存不足则发布 ofs；其它状态无条件回补并发布 open。
func (e *ReservationEngine) ApplyPaymentOutcome(ctx context.Context, cmd domain.PaymentOutcome) (*domain.OutcomeEvent, error) {
	ctx, span := e.tracer.Start(ctx, "inventory.ApplyPaymentOutcome", trace.WithAttributes(
		attribute.String("order.id", string(cmd.OrderID)),
		attribute.Int64("product.id", cmd.ProductID),
		attribute.Int64("payment.amount", cmd.Amount),
		attribute.String("payment.status", cmd.Status),
	))
	defer span.End()

	log := logger.Ctx(ctx).With().
		Str("order_id", string(cmd.OrderID)).
		Int64("product_id", cmd.ProductID).
		Int64("amount", cmd.Amount).
		Str("payment_status", cmd.Status).
		Logger()

	if cmd.Amount <= 0 {
		err := errors.Wrapf(domain.ErrInvalidQuantity, "payment amount %d", cmd.Amount)
		recordSpanError(span, err, "invalid amount")
		return nil, err
	}

	key := cmd.IdempotencyKey()
	if err := e.claim(ctx, key); err != nil {
		recordSpanError(span, err, "idempotency claim failed")
		return nil, err
	}

	var (
		outcome domain.OutcomeEvent
		topic   string
		record  *domain.StockRecord
		err     error
	)
	if cmd.Succeeded() {
		record, err = e.store.Reserve(ctx, cmd.ProductID, cmd.Amount)
		switch {
		case err == nil:
			outcome = domain.NewOutcomeEvent(cmd.OrderID, cmd.ProductID, domain.OutcomeReserved, cmd.Amount)
			topic = e.topics.InventoryUpdate
		case errors.Is(err, domain.ErrInsufficientStock):
			outcome = domain.NewOutcomeEvent(cmd.OrderID, cmd.ProductID, domain.OutcomeOutOfStock, 0)
			topic = e.topics.InventoryFailure
			span.AddEvent("reservation rejected: insufficient stock")
		default:
			return nil, e.storeFailure(ctx, span, &log, "reserve", key, err)
		}
	} else {
		record, err = e.store.Restock(ctx, cmd.ProductID, cmd.Amount)
		if err != nil {
			return nil, e.storeFailure(ctx, span, &log, "release", key, err)
		}
		outcome = domain.NewOutcomeEvent(cmd.OrderID, cmd.ProductID, domain.OutcomeOpen, cmd.Amount)
		topic = e.topics.InventoryUpdate
	}

	if err := e.publish(ctx, topic, outcome); err != nil {
		recordSpanError(span, err, "outcome publication failed")
		log.Error().Err(err).Str("outcome", string(outcome.Status)).Msg("CRITICAL: stock mutated but outcome was not published")
		return nil, err
	}

	e.recorder.ObserveOutcome(outcome.Status)
	span.SetAttributes(attribute.String("inventory.outcome", string(outcome.Status)))
	logOutcome(&log, outcome, record)
	return &outcome, nil
}

// ApplyDeliveryOutcome 处理一次配送结果。只有命中回补策略（默认 FAILED）时回补库存并发布 delivery，
// 其余状态直接确认，返回 nil 结果。
func (e *ReservationEngine) ApplyDeliveryOutcome(ctx context.Context, cmd domain.DeliveryOutcome) (*domain.OutcomeEvent, error) {
	ctx, span := e.tracer.Start(ctx, "inventory.ApplyDeliveryOutcome", trace.WithAttributes(
		attribute.String("order.id", string(cmd.OrderID)),
		attribute.Int64("product.id", cmd.ProductID),
		attribute.Int64("delivery.quantity", cmd.Quantity),
		attribute.String("delivery.status", cmd.Status),
	))
	defer span.End()

	log := logger.Ctx(ctx).With().
		Str("order_id", string(cmd.OrderID)).
		Int64("product_id", cmd.ProductID).
		Int64("quantity", cmd.Quantity).
		Str("delivery_status", cmd.Status).
		Logger()

	if cmd.Quantity <= 0 {
		err := errors.Wrapf(domain.ErrInvalidQuantity, "delivery quantity %d", cmd.Quantity)
		recordSpanError(span, err, "invalid quantity")
		return nil, err
	}

	restock, err := e.restock.ShouldRestock(ctx, cmd)
	if err != nil {
		err = errors.Wrap(err, "evaluate restock policy")
		recordSpanError(span, err, "restock policy failed")
		return nil, err
	}
	if !restock {
		span.AddEvent("delivery status acknowledged without restock")
		log.Debug().Msg("Delivery outcome needs no restock")
		return nil, nil
	}

	key := cmd.IdempotencyKey()
	if err := e.claim(ctx, key); err != nil {
		recordSpanError(span, err, "idempotency claim failed")
		return nil, err
	}

	record, err := e.store.Restock(ctx, cmd.ProductID, cmd.Quantity)
	if err != nil {
		return nil, e.storeFailure(ctx, span, &log, "restock", key, err)
	}

	outcome := domain.NewOutcomeEvent(cmd.OrderID, cmd.ProductID, domain.OutcomeDelivery, cmd.Quantity)
	if err := e.publish(ctx, e.topics.InventoryFailure, outcome); err != nil {
		recordSpanError(span, err, "outcome publication failed")
		log.Error().Err(err).Msg("CRITICAL: stock restocked but outcome was not published")
		return nil, err
	}

	e.recorder.ObserveOutcome(outcome.Status)
	logOutcome(&log, outcome, record)
	return &outcome, nil
}

// claim 为带订单号的事件声明幂等键，已声明过的返回 ErrDuplicateEvent
func (e *ReservationEngine) claim(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	first, err := e.guard.Claim(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: idempotency claim %s: %w", domain.ErrStoreUnavailable, key, err)
	}
	if !first {
		return errors.Wrapf(domain.ErrDuplicateEvent, "key %s", key)
	}
	return nil
}

// storeFailure 放弃本次操作：不发布结果，并撤销幂等声明以便上游重投
func (e *ReservationEngine) storeFailure(ctx context.Context, span trace.Span, log *zerolog.Logger, op, key string, cause error) error {
	e.recorder.ObserveStoreError(op)
	err := fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, cause)
	recordSpanError(span, err, "stock store failed")
	log.Error().Err(cause).Str("operation", op).Msg("Stock store operation failed, no outcome published")

	if key != "" {
		if releaseErr := e.guard.Release(ctx, key); releaseErr != nil {
			log.Error().Err(releaseErr).Str("key", key).Msg("Failed to release idempotency key")
		}
	}
	return err
}

func (e *ReservationEngine) publish(ctx context.Context, topic string, outcome domain.OutcomeEvent) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return errors.Wrap(err, "marshal outcome event")
	}
	if err := e.publisher.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("%w: topic %s: %w", domain.ErrPublishFailed, topic, err)
	}
	return nil
}

func logOutcome(log *zerolog.Logger, outcome domain.OutcomeEvent, record *domain.StockRecord) {
	ev := log.Info().Str("outcome", string(outcome.Status)).Str("event_id", outcome.EventID)
	if record != nil {
		ev = ev.Int64("stock_quantity", record.Quantity)
	}
	ev.Msg("Inventory outcome published")
}

func recordSpanError(span trace.Span, err error, description string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
}
