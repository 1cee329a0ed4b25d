// internal/service/inventory/interfaces/listener.go
package interfaces

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"stockflow/internal/pkg/logger"
	"stockflow/internal/service/inventory/application"
	"stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/inventory/port"
)

const defaultRetryDelay = time.Second

// EventListener 是一个驱动适配器：从订阅中逐条取出支付/配送消息并交给预留引擎。
// 同一个 listener 内严格按收到的顺序串行处理。
type EventListener struct {
	sub        port.Subscription
	engine     *application.ReservationEngine
	topics     domain.Topics
	recorder   port.Recorder
	tracer     trace.Tracer
	retryDelay time.Duration
}

func NewEventListener(sub port.Subscription, engine *application.ReservationEngine, topics domain.Topics, recorder port.Recorder, tracer trace.Tracer) *EventListener {
	return &EventListener{
		sub:        sub,
		engine:     engine,
		topics:     topics,
		recorder:   recorder,
		tracer:     tracer,
		retryDelay: defaultRetryDelay,
	}
}

// Run 持续处理消息直到 ctx 取消或订阅关闭，返回前释放订阅。
// 取消只在两条消息之间生效，正在处理的消息会完整处理并确认。
func (l *EventListener) Run(ctx context.Context) error {
	defer l.sub.Close()
	log := logger.Ctx(ctx)
	log.Info().Str("payment_topic", l.topics.PaymentStatus).Str("delivery_topic", l.topics.DeliveryStatus).Msg("✅ Event listener started")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("🛑 Event listener shutting down.")
			return nil
		}

		msg, err := l.sub.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, port.ErrSubscriptionClosed):
				log.Info().Msg("🛑 Subscription closed, event listener exiting.")
				return nil
			case ctx.Err() != nil:
				log.Info().Msg("🛑 Event listener shutting down.")
				return nil
			}
			log.Error().Err(err).Msg("could not read message, retrying")
			select {
			case <-time.After(l.retryDelay): // 避免快速失败循环
			case <-ctx.Done():
			}
			continue
		}

		dispatchCtx := context.WithoutCancel(ctx)
		l.dispatch(dispatchCtx, msg)

		// 无论成功、失败还是丢弃都确认，重投由上游负责
		if err := l.sub.Ack(dispatchCtx, msg); err != nil {
			log.Error().Err(err).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("Failed to ack message")
		}
	}
}

func (l *EventListener) dispatch(ctx context.Context, msg port.Message) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
	ctx, span := l.tracer.Start(ctx, "inventory.listener.Dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.destination", msg.Topic)),
	)
	defer span.End()

	var result port.EventResult
	switch msg.Topic {
	case l.topics.PaymentStatus:
		result = l.handlePayment(ctx, msg)
	case l.topics.DeliveryStatus:
		result = l.handleDelivery(ctx, msg)
	default:
		logger.Ctx(ctx).Warn().Str("topic", msg.Topic).Msg("Message from unexpected topic ignored")
		result = port.EventIgnored
	}

	span.SetAttributes(attribute.String("inventory.event_result", string(result)))
	l.recorder.ObserveEvent(msg.Topic, result)
}

func (l *EventListener) handlePayment(ctx context.Context, msg port.Message) port.EventResult {
	cmd, err := domain.DecodePaymentOutcome(msg.Payload)
	if err != nil {
		logMalformed(ctx, msg, err)
		return port.EventMalformed
	}
	_, err = l.engine.ApplyPaymentOutcome(ctx, cmd)
	return classify(ctx, msg.Topic, err)
}

func (l *EventListener) handleDelivery(ctx context.Context, msg port.Message) port.EventResult {
	cmd, err := domain.DecodeDeliveryOutcome(msg.Payload)
	if err != nil {
		logMalformed(ctx, msg, err)
		return port.EventMalformed
	}
	outcome, err := l.engine.ApplyDeliveryOutcome(ctx, cmd)
	if err == nil && outcome == nil {
		return port.EventIgnored
	}
	return classify(ctx, msg.Topic, err)
}

func classify(ctx context.Context, topic string, err error) port.EventResult {
	switch {
	case err == nil:
		return port.EventApplied
	case errors.Is(err, domain.ErrDuplicateEvent):
		logger.Ctx(ctx).Info().Err(err).Str("topic", topic).Msg("Duplicate event skipped")
		return port.EventDuplicate
	default:
		logger.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("Failed to apply event, waiting for upstream redelivery")
		return port.EventFailed
	}
}

func logMalformed(ctx context.Context, msg port.Message, err error) {
	logger.Ctx(ctx).Warn().
		Err(err).
		Str("topic", msg.Topic).
		Str("payload", string(msg.Payload)).
		Msg("Dropping malformed event")
}
