package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/akirachix/mlimizone-backend/internal/messaging"
)

// OutcomeQueued means the callback was handed to the queue and not yet applied.
const OutcomeQueued Outcome = "queued"

// CallbackQueue defers reconciliation: the raw payload is published to
// messaging.TopicPaymentCallbacks and applied later by ConsumeCallbacks.
type CallbackQueue struct {
	publisher messaging.Publisher
}

func NewCallbackQueue(publisher messaging.Publisher) *CallbackQueue {
	return &CallbackQueue{publisher: publisher}
}

// HandleCallback publishes payload keyed by its transaction reference so that
// callbacks for one payment stay ordered.
func (q *CallbackQueue) HandleCallback(ctx context.Context, payload []byte) (Outcome, error) {
	cb, _ := ParseCallback(payload)
	if err := q.publisher.PublishEvent(ctx, messaging.TopicPaymentCallbacks, cb.TransactionRef, json.RawMessage(payload)); err != nil {
		return "", fmt.Errorf("failed to queue payment callback: %w", err)
	}
	return OutcomeQueued, nil
}

// ConsumeCallbacks reconciles queued callbacks until ctx is cancelled.
// Malformed payloads are logged and skipped.
func (s *PaymentService) ConsumeCallbacks(ctx context.Context, sub messaging.Subscriber, groupID string) {
	sub.Consume(ctx, messaging.TopicPaymentCallbacks, groupID, func(ctx context.Context, payload []byte) error {
		outcome, err := s.HandleCallback(ctx, payload)
		if errors.Is(err, ErrMalformedCallback) {
			slog.Warn("Dropping malformed payment callback", "err", err)
			return nil
		}
		if err != nil {
			return err
		}
		slog.Debug("Reconciled queued payment callback", "outcome", outcome)
		return nil
	})
}
