package adapter

import (
	"context"
	"sync"

	"stockflow/internal/service/inventory/port"
)

const memorySubscriptionBuffer = 256

// MemoryBroker 是进程内的发布订阅实现，同时保留已发布消息供检查
type MemoryBroker struct {
	mu        sync.RWMutex
	subs      map[string]map[*memorySubscription]struct{}
	published []port.Message
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*memorySubscription]struct{})}
}

// Publish 把消息投递给该主题当前的全部订阅者。订阅者缓冲已满时阻塞，直到 ctx 结束。
func (b *MemoryBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := port.Message{Topic: topic, Payload: append([]byte(nil), payload...)}

	b.mu.Lock()
	b.published = append(b.published, msg)
	targets := make([]*memorySubscription, 0, len(b.subs[topic]))
	for sub := range b.subs[topic] {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- msg:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, topics ...string) (port.Subscription, error) {
	sub := &memorySubscription{
		broker: b,
		topics: topics,
		ch:     make(chan port.Message, memorySubscriptionBuffer),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		if b.subs[topic] == nil {
			b.subs[topic] = make(map[*memorySubscription]struct{})
		}
		b.subs[topic][sub] = struct{}{}
	}
	return sub, nil
}

// Published 返回某个主题上已发布的全部消息
func (b *MemoryBroker) Published(topic string) []port.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []port.Message
	for _, msg := range b.published {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func (b *MemoryBroker) unsubscribe(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range sub.topics {
		delete(b.subs[topic], sub)
	}
}

type memorySubscription struct {
	broker    *MemoryBroker
	topics    []string
	ch        chan port.Message
	done      chan struct{}
	closeOnce sync.Once
}

// Next 先消费完缓冲中的消息，再报告订阅已关闭
func (s *memorySubscription) Next(ctx context.Context) (port.Message, error) {
	select {
	case msg := <-s.ch:
		return msg, nil
	default:
	}
	select {
	case msg := <-s.ch:
		return msg, nil
	case <-s.done:
		return port.Message{}, port.ErrSubscriptionClosed
	case <-ctx.Done():
		return port.Message{}, ctx.Err()
	}
}

func (s *memorySubscription) Ack(context.Context, port.Message) error { return nil }

func (s *memorySubscription) Close() error {
	s.closeOnce.Do(func() {
		s.broker.unsubscribe(s)
		close(s.done)
	})
	return nil
}
