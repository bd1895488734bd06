package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository/memory"
)

type failingProvider struct{}

func (failingProvider) Send(ctx context.Context, phone, message string) error {
	return errors.New("provider unavailable")
}

func TestDispatcher_RecordsOutcome(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	ok := NewDispatcher(LogProvider{}, store, 0)
	assert.True(t, ok.Send(ctx, "254700000001", "hello").Delivered)

	bad := NewDispatcher(failingProvider{}, store, 0)
	assert.False(t, bad.Send(ctx, "254700000002", "hello").Delivered)

	logs := store.SMSLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, entity.SMSDelivered, logs[0].Status)
	assert.Equal(t, entity.SMSFailed, logs[1].Status)
	assert.Equal(t, "254700000002", logs[1].Phone)
	assert.NotEmpty(t, logs[1].ID)
}

func TestDispatcher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := memory.NewStore()
	d := NewDispatcher(LogProvider{}, store, 1)
	res := d.Send(ctx, "254700000001", "one")
	assert.False(t, res.Delivered)
	assert.False(t, res.Queued)

	logs := store.SMSLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, entity.SMSFailed, logs[0].Status)
}

type countingProvider struct {
	mu   sync.Mutex
	sent []string
}

func (p *countingProvider) Send(ctx context.Context, phone, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, message)
	return nil
}

func (p *countingProvider) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

func TestDispatcher_ThrottleDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	provider := &countingProvider{}
	d := NewDispatcher(provider, store, 2)

	start := time.Now()
	assert.True(t, d.Send(ctx, "254700000001", "one").Delivered)
	assert.True(t, d.Send(ctx, "254700000001", "two").Delivered)
	res := d.Send(ctx, "254700000001", "three")
	assert.True(t, res.Queued)
	assert.False(t, res.Delivered)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Len(t, provider.Sent(), 2)

	require.NoError(t, d.Close())
	assert.Equal(t, []string{"one", "two", "three"}, provider.Sent())
	assert.Len(t, store.SMSLogs(), 3)
}

func TestDispatcher_BacklogLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	provider := &countingProvider{}
	d := NewDispatcher(provider, store, 1)
	d.maxDelay = time.Millisecond

	assert.True(t, d.Send(ctx, "254700000001", "one").Delivered)
	res := d.Send(ctx, "254700000001", "two")
	assert.False(t, res.Delivered)
	assert.False(t, res.Queued)

	require.NoError(t, d.Close())
	assert.Equal(t, []string{"one"}, provider.Sent())
	logs := store.SMSLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, entity.SMSFailed, logs[1].Status)
}

func TestSMSLeopard_Send(t *testing.T) {
	var got smsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := NewSMSLeopard(SMSLeopardConfig{URL: srv.URL, APIKey: "key", APISecret: "secret", Source: "MlimiZone"})
	require.NoError(t, p.Send(context.Background(), "254700000001", "Welcome"))

	assert.Equal(t, "MlimiZone", got.Source)
	assert.False(t, got.Multi)
	assert.Equal(t, "Welcome", got.Message)
	require.Len(t, got.Destination, 1)
	assert.Equal(t, "254700000001", got.Destination[0].Number)
}

func TestSMSLeopard_BreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewSMSLeopard(SMSLeopardConfig{URL: srv.URL})
	for i := 0; i < 5; i++ {
		err := p.Send(context.Background(), "254700000001", "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	}

	err := p.Send(context.Background(), "254700000001", "x")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, calls)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Send(context.Background(), "254700000001", "a")
	r.Send(context.Background(), "254700000002", "b")

	assert.Equal(t, []Message{{"254700000001", "a"}, {"254700000002", "b"}}, r.Messages())
	r.Reset()
	assert.Empty(t, r.Messages())
}
