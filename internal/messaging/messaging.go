package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/akirachix/mlimizone-backend/internal/entity"
)

// Topic for raw payment gateway callbacks when reconciliation runs off the queue.
const TopicPaymentCallbacks = "payments.callbacks"

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// Subscriber defines an interface for subscribing to a message topic.
// Consume blocks until ctx is cancelled.
type Subscriber interface {
	Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error)
}

// Publish sends a domain event on its own topic. Failures are logged and swallowed:
// events are notifications for downstream consumers, never part of a transaction.
func Publish(ctx context.Context, p Publisher, key string, event entity.Event) {
	if p == nil {
		return
	}
	if err := p.PublishEvent(ctx, event.Topic(), key, event); err != nil {
		slog.Error("Failed to publish event", "event", event.EventType(), "key", key, "err", err)
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	return nil
}

// Tee publishes every event to each publisher in order. All are attempted;
// their errors are joined.
func Tee(publishers ...Publisher) Publisher {
	return tee(publishers)
}

type tee []Publisher

func (t tee) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	var errs []error
	for _, p := range t {
		if err := p.PublishEvent(ctx, topic, key, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Encode passes raw payloads through untouched and JSON-encodes everything else.
func Encode(event any) ([]byte, error) {
	switch v := event.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}
