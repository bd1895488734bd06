// Package notify delivers confirmation SMS messages. Delivery never fails the
// caller: every attempt is logged as an SMSLog row with its outcome.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

// Result reports whether the provider accepted a message. Queued is set when
// the throttle deferred the send; its outcome is only recorded in the SMS log.
type Result struct {
	Delivered bool
	Queued    bool
}

// Notifier sends one message to one subscriber.
type Notifier interface {
	Send(ctx context.Context, phone, message string) Result
}

// Provider is an SMS transport.
type Provider interface {
	Send(ctx context.Context, phone, message string) error
}

// maxThrottleDelay caps how far ahead a send may be scheduled. It also bounds
// the deferred backlog to rate × maxThrottleDelay messages.
const maxThrottleDelay = 30 * time.Second

// Dispatcher throttles sends to the provider and records each attempt.
// A send that would wait for the throttle is deferred to a goroutine so the
// caller never blocks on the rate limit.
type Dispatcher struct {
	provider Provider
	logs     repository.SMSLogRepository
	limiter  *rate.Limiter
	maxDelay time.Duration
	pending  sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. perSecond <= 0 disables throttling.
func NewDispatcher(provider Provider, logs repository.SMSLogRepository, perSecond float64) *Dispatcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Dispatcher{
		provider: provider,
		logs:     logs,
		limiter:  rate.NewLimiter(limit, burst),
		maxDelay: maxThrottleDelay,
	}
}

func (d *Dispatcher) Send(ctx context.Context, phone, message string) Result {
	if err := ctx.Err(); err != nil {
		slog.Warn("SMS not sent", "phone", phone, "err", err)
		d.record(ctx, phone, message, entity.SMSFailed)
		return Result{}
	}

	r := d.limiter.Reserve()
	delay := r.Delay()
	switch {
	case delay == 0:
		return Result{Delivered: d.deliver(ctx, phone, message)}
	case !r.OK() || delay > d.maxDelay:
		r.Cancel()
		slog.Warn("SMS throttled", "phone", phone, "delay", delay)
		d.record(ctx, phone, message, entity.SMSFailed)
		return Result{}
	}

	// the request that triggered the message may finish before it is sent
	bg := context.WithoutCancel(ctx)
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		time.Sleep(delay)
		d.deliver(bg, phone, message)
	}()
	return Result{Queued: true}
}

func (d *Dispatcher) deliver(ctx context.Context, phone, message string) bool {
	status := entity.SMSDelivered
	if err := d.provider.Send(ctx, phone, message); err != nil {
		slog.Error("Failed to send SMS", "phone", phone, "err", err)
		status = entity.SMSFailed
	}
	d.record(ctx, phone, message, status)
	return status == entity.SMSDelivered
}

func (d *Dispatcher) record(ctx context.Context, phone, message string, status entity.SMSStatus) {
	if d.logs == nil {
		return
	}
	l := &entity.SMSLog{
		ID:     uuid.NewString(),
		Phone:  phone,
		Body:   message,
		Status: status,
		SentAt: time.Now(),
	}
	if err := d.logs.AppendSMSLog(context.WithoutCancel(ctx), l); err != nil {
		slog.Error("Failed to record SMS log", "phone", phone, "err", err)
	}
}

// Close waits for deferred sends to finish.
func (d *Dispatcher) Close() error {
	d.pending.Wait()
	return nil
}

// LogProvider writes messages to the process log instead of sending them.
type LogProvider struct{}

func (LogProvider) Send(ctx context.Context, phone, message string) error {
	slog.Info("SMS (log only)", "phone", phone, "message", message)
	return nil
}

// Message is one captured notification.
type Message struct {
	Phone string
	Body  string
}

// Recorder is a Notifier that keeps every message in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Send(ctx context.Context, phone, message string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Phone: phone, Body: message})
	return Result{Delivered: true}
}

// Messages returns a copy of the captured messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Reset drops captured messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
