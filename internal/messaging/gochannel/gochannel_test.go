package gochannel

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akirachix/mlimizone-backend/internal/entity"
)

func TestBus_RoundTrip(t *testing.T) {
	bus := NewBus(slog.Default(), true)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.PublishEvent(ctx, "orders.booked", "7", entity.OrderBooked{OrderID: 7, Price: 5000}))
	require.NoError(t, bus.PublishEvent(ctx, "payments.callbacks", "", []byte(`{"raw":true}`)))

	got := make(chan []byte, 1)
	go bus.Consume(ctx, "orders.booked", "test", func(ctx context.Context, payload []byte) error {
		got <- payload
		return nil
	})

	select {
	case payload := <-got:
		var ev entity.OrderBooked
		require.NoError(t, json.Unmarshal(payload, &ev))
		assert.Equal(t, int64(7), ev.OrderID)
		assert.Equal(t, 5000.0, ev.Price)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}
