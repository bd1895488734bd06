// Package gochannel is an in-process message bus for single-node deployments and tests.
package gochannel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/akirachix/mlimizone-backend/internal/messaging"
)

const keyMetadata = "partition_key"

// Bus adapts a watermill Go channel pub/sub to the messaging interfaces.
type Bus struct {
	pubsub *gochannel.GoChannel
}

var (
	_ messaging.Publisher  = (*Bus)(nil)
	_ messaging.Subscriber = (*Bus)(nil)
)

// NewBus creates a bus. With persistent set, messages published before a
// subscriber attaches are replayed to it.
func NewBus(logger *slog.Logger, persistent bool) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
			Persistent:          persistent,
		}, watermill.NewSlogLogger(logger)),
	}
}

func (b *Bus) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := messaging.Encode(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(keyMetadata, key)
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Consume delivers every message on topic to handler. Consumer groups do not
// exist in process, so groupID only labels the logs.
func (b *Bus) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		slog.Error("Error subscribing", "topic", topic, "group", groupID, "err", err)
		return
	}

	for msg := range messages {
		if err := handler(ctx, msg.Payload); err != nil {
			slog.Error("Error handling message", "topic", topic, "group", groupID, "message_id", msg.UUID, "err", err)
		}
		msg.Ack()
	}
	slog.Info("Consumer shutting down", "topic", topic, "group", groupID)
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}
