package port

import (
	"context"
	"errors"
)

// ErrSubscriptionClosed 表示订阅已经关闭，不会再有新消息
var ErrSubscriptionClosed = errors.New("subscription closed")

// Message 是从事件通道收到的一条消息
type Message struct {
	Topic     string
	Payload   []byte
	Headers   map[string]string // 传输层支持时携带 trace 上下文
	Partition int
	Offset    int64
}

// Publisher 是事件通道的发布端
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscriber 创建对若干主题的订阅
type Subscriber interface {
	Subscribe(ctx context.Context, topics ...string) (Subscription, error)
}

// Subscription 是一个可取消的订阅对象。
// Next 阻塞直到收到消息、ctx 结束（返回 ctx.Err()）或订阅关闭（返回 ErrSubscriptionClosed）。
type Subscription interface {
	Next(ctx context.Context) (Message, error)
	// Ack 确认消息已处理。至少一次语义的传输据此推进消费位点，其余实现为空操作。
	Ack(ctx context.Context, msg Message) error
	Close() error
}
