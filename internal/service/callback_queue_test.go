package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/messaging/gochannel"
)

func TestCallbackQueue_ReconcilesOffTheBus(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buyer, o := f.booked(t)
	_, err := f.payments.Initiate(ctx, buyer, o.ID)
	require.NoError(t, err)

	bus := gochannel.NewBus(slog.Default(), true)
	defer bus.Close()

	queue := NewCallbackQueue(bus)
	// a malformed payload must not stop the consumer
	_, err = queue.HandleCallback(ctx, []byte(`not json`))
	require.NoError(t, err)
	outcome, err := queue.HandleCallback(ctx, []byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"ok"}}}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)

	go f.payments.ConsumeCallbacks(ctx, bus, "test")

	require.Eventually(t, func() bool {
		got, err := f.store.FindOrder(ctx, o.ID)
		return err == nil && got.Status == entity.OrderPaid
	}, 2*time.Second, 10*time.Millisecond)

	p, err := f.store.FindPaymentByRef(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentCompleted, p.Status)
}
