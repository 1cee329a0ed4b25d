package adapter

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"stockflow/internal/pkg/mq"
	"stockflow/internal/service/inventory/port"
)

// KafkaPublisher 按主题写入 kafka，并在消息头中携带 trace 上下文
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return errors.Wrapf(mq.ProduceMessage(ctx, p.writer, topic, nil, payload), "kafka produce to %s", topic)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaSubscriber 以消费组方式订阅，消息在 Ack 之后才提交位点
type KafkaSubscriber struct {
	brokers []string
	groupID string
}

func NewKafkaSubscriber(brokers []string, groupID string) *KafkaSubscriber {
	return &KafkaSubscriber{brokers: brokers, groupID: groupID}
}

func (s *KafkaSubscriber) Subscribe(_ context.Context, topics ...string) (port.Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.New("kafka subscription needs at least one topic")
	}
	return &kafkaSubscription{reader: mq.NewGroupReader(s.brokers, s.groupID, topics)}, nil
}

type kafkaSubscription struct {
	reader *kafka.Reader
}

// Next 使用 FetchMessage 而不是 ReadMessage，位点由 Ack 显式提交
func (s *kafkaSubscription) Next(ctx context.Context) (port.Message, error) {
	msg, err := s.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return port.Message{}, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return port.Message{}, port.ErrSubscriptionClosed
		}
		return port.Message{}, errors.Wrap(err, "kafka fetch")
	}
	headers := mq.KafkaHeaderCarrier(msg.Headers)
	return port.Message{
		Topic:     msg.Topic,
		Payload:   msg.Value,
		Headers:   headers.Map(),
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}, nil
}

func (s *kafkaSubscription) Ack(ctx context.Context, msg port.Message) error {
	return errors.Wrap(s.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}), "kafka commit")
}

func (s *kafkaSubscription) Close() error {
	return s.reader.Close()
}
