package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/akirachix/mlimizone-backend/internal/messaging"
)

// Broker publishes and consumes JSON messages on Kafka.
type Broker struct {
	brokers []string
	writer  *kafkaGo.Writer
}

// NewKafkaBroker creates a Kafka publisher and subscriber sharing one writer.
func NewKafkaBroker(brokers []string) *Broker {
	return &Broker{
		brokers: brokers,
		writer: &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(brokers...),
			Balancer:               &kafkaGo.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

var (
	_ messaging.Publisher  = (*Broker)(nil)
	_ messaging.Subscriber = (*Broker)(nil)
)

func (k *Broker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := messaging.Encode(event)
	if err != nil {
		return err
	}

	err = k.writer.WriteMessages(ctx, kafkaGo.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to %s: %w", topic, err)
	}
	return nil
}

func (k *Broker) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers: k.brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Consumer shutting down", "topic", topic)
				return
			}
			slog.Error("Error reading message", "topic", topic, "err", err)
			continue
		}

		if err := handler(ctx, msg.Value); err != nil {
			slog.Error("Error handling message", "topic", topic, "offset", msg.Offset, "err", err)
		}
	}
}

// Close flushes pending writes.
func (k *Broker) Close() error {
	return k.writer.Close()
}
