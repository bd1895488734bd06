package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownDistrict    = errors.New("unknown district")
	ErrInvalidQuantity    = errors.New("quantity must be a number above 0")
	ErrNoMarketPrice      = errors.New("no market price")
	ErrListingUnavailable = errors.New("listing no longer available")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyPaid   = errors.New("order already paid")
	ErrPaymentPending     = errors.New("payment already pending")
	ErrInvalidOrderPrice  = errors.New("invalid order price")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrInvalidAmount      = errors.New("invalid payment amount")
	ErrMalformedCallback  = errors.New("malformed payment callback")
)

// GatewayError wraps a failed push-payment request. It is retryable by the subscriber.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: %v", e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
