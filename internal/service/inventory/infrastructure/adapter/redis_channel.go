package adapter

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"stockflow/internal/service/inventory/port"
)

// RedisPublisher 通过 Redis PUBLISH 发布消息，消息体保持原始 JSON
type RedisPublisher struct {
	client *goredis.Client
}

func NewRedisPublisher(client *goredis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return errors.Wrapf(p.client.Publish(ctx, topic, payload).Err(), "redis publish to %s", topic)
}

// RedisSubscriber 基于 Redis Pub/Sub 订阅频道。
// Pub/Sub 不持久化，订阅建立之前以及断线期间的消息会丢失。
type RedisSubscriber struct {
	client *goredis.Client
}

func NewRedisSubscriber(client *goredis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

// Subscribe 等到服务端确认订阅后才返回
func (s *RedisSubscriber) Subscribe(ctx context.Context, topics ...string) (port.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, topics...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrapf(err, "subscribe to %v", topics)
	}
	return &redisSubscription{pubsub: pubsub, ch: pubsub.Channel()}, nil
}

type redisSubscription struct {
	pubsub    *goredis.PubSub
	ch        <-chan *goredis.Message
	closeOnce sync.Once
	closeErr  error
}

func (s *redisSubscription) Next(ctx context.Context) (port.Message, error) {
	select {
	case <-ctx.Done():
		return port.Message{}, ctx.Err()
	case m, ok := <-s.ch:
		if !ok {
			return port.Message{}, port.ErrSubscriptionClosed
		}
		return port.Message{Topic: m.Channel, Payload: []byte(m.Payload)}, nil
	}
}

func (s *redisSubscription) Ack(context.Context, port.Message) error { return nil }

func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pubsub.Close()
	})
	return s.closeErr
}
