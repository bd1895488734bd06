package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akirachix/mlimizone-backend/internal/entity"
)

type recordingPublisher struct {
	topics []string
	keys   []string
	err    error
}

func (r *recordingPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	r.topics = append(r.topics, topic)
	r.keys = append(r.keys, key)
	return r.err
}

func TestEncode(t *testing.T) {
	raw := []byte(`{"Body":{}}`)
	out, err := Encode(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	out, err = Encode(entity.OrderBooked{OrderID: 7, ListingID: 3, Price: 5000})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.EqualValues(t, 7, decoded["order_id"])

	_, err = Encode(make(chan int))
	assert.Error(t, err)
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	p := &recordingPublisher{}

	Publish(ctx, p, "42", entity.PaymentCompletedEvent{OrderID: 42})
	assert.Equal(t, []string{"payments.completed"}, p.topics)
	assert.Equal(t, []string{"42"}, p.keys)

	// failures and a missing publisher are tolerated
	p.err = errors.New("broker down")
	Publish(ctx, p, "43", entity.PaymentFailedEvent{OrderID: 43})
	Publish(ctx, nil, "44", entity.PaymentFailedEvent{OrderID: 44})
	assert.Len(t, p.topics, 2)
}

func TestTee(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("broker down")
	log := &recordingPublisher{}
	broken := &recordingPublisher{err: boom}
	last := &recordingPublisher{}

	err := Tee(log, broken, last).PublishEvent(ctx, "orders.booked", "7", entity.OrderBooked{OrderID: 7})
	assert.ErrorIs(t, err, boom)
	for _, p := range []*recordingPublisher{log, broken, last} {
		assert.Equal(t, []string{"orders.booked"}, p.topics)
	}

	assert.NoError(t, Tee().PublishEvent(ctx, "orders.booked", "7", nil))
}
