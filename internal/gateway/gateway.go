// Package gateway requests mobile-money push payments.
package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"
)

// ErrRejected is returned when the gateway answers but declines the request.
var ErrRejected = errors.New("payment request rejected")

// PushRequest asks the subscriber's handset to authorise a payment.
type PushRequest struct {
	Phone       string
	Amount      int64 // whole currency units
	Reference   string
	Description string
}

// PushResult is an accepted request. CheckoutID joins the later callback.
type PushResult struct {
	CheckoutID        string
	MerchantRequestID string
	Description       string
}

// Client is a push-payment gateway.
type Client interface {
	RequestPushPayment(ctx context.Context, req PushRequest) (*PushResult, error)
}

// Sandbox accepts every well-formed request without contacting a gateway.
type Sandbox struct {
	mu       sync.Mutex
	requests []PushRequest
}

func (s *Sandbox) RequestPushPayment(ctx context.Context, req PushRequest) (*PushResult, error) {
	if req.Amount <= 0 || req.Phone == "" {
		return nil, ErrRejected
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	return &PushResult{
		CheckoutID:        "ws_CO_" + ulid.Make().String(),
		MerchantRequestID: ulid.Make().String(),
		Description:       "Success. Request accepted for processing",
	}, nil
}

// Requests returns the accepted requests.
func (s *Sandbox) Requests() []PushRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PushRequest(nil), s.requests...)
}
