package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/gateway"
	"github.com/akirachix/mlimizone-backend/internal/messaging"
	"github.com/akirachix/mlimizone-backend/internal/notify"
	"github.com/akirachix/mlimizone-backend/internal/phone"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

// PaymentService drives the payment lifecycle: push request, callback
// reconciliation and expiry of stale pending payments.
type PaymentService struct {
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	gateway   gateway.Client
	notifier  notify.Notifier
	publisher messaging.Publisher
	now       func() time.Time
}

func NewPaymentService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	gw gateway.Client,
	notifier notify.Notifier,
	publisher messaging.Publisher,
) *PaymentService {
	return &PaymentService{
		orders:    orders,
		payments:  payments,
		gateway:   gw,
		notifier:  notifier,
		publisher: publisher,
		now:       time.Now,
	}
}

// Initiate requests a push payment for an unpaid order and records it as pending.
// Precondition failures return the matching sentinel; gateway failures return *GatewayError.
// An order that already has a pending payment gets no new push and yields ErrPaymentPending.
func (s *PaymentService) Initiate(ctx context.Context, wholesaler *entity.Account, orderID int64) (*entity.Payment, error) {
	o, err := s.orders.FindOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if o.Status == entity.OrderPaid {
		return nil, ErrOrderAlreadyPaid
	}
	pending, err := s.payments.FindPendingPayment(ctx, o.ID)
	switch {
	case err == nil:
		slog.Info("Service: Payment already pending", "order_id", o.ID, "payment_id", pending.ID, "transaction_ref", pending.TransactionRef)
		return nil, fmt.Errorf("%w: %s", ErrPaymentPending, pending.TransactionRef)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to load pending payment: %w", err)
	}
	if !(o.Price > 0) {
		slog.Error("Invalid order price", "order_id", o.ID, "price", o.Price)
		return nil, ErrInvalidOrderPrice
	}
	msisdn, err := phone.Normalize(wholesaler.Phone)
	if err != nil {
		slog.Error("Invalid wholesaler phone", "account_id", wholesaler.ID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	// the gateway only moves whole currency units
	amount := int64(o.Price)
	if amount <= 0 {
		slog.Error("Invalid payment amount", "order_id", o.ID, "amount", amount)
		return nil, ErrInvalidAmount
	}

	res, err := s.gateway.RequestPushPayment(ctx, gateway.PushRequest{
		Phone:       msisdn,
		Amount:      amount,
		Reference:   fmt.Sprintf("Order_%d", o.ID),
		Description: "Payment for " + o.Listing.CropName,
	})
	if err != nil {
		slog.Error("Push payment failed", "order_id", o.ID, "err", err)
		return nil, &GatewayError{Err: err}
	}

	p, created, err := s.payments.RecordPendingPayment(ctx, o.ID, o.Price, res.CheckoutID)
	if err != nil {
		slog.Error("Accepted push payment not recorded, needs manual follow-up",
			"order_id", o.ID, "transaction_ref", res.CheckoutID, "err", err)
		return nil, fmt.Errorf("failed to record payment for order %d: %w", o.ID, err)
	}
	if !created {
		slog.Warn("Service: Push payment acceptance replayed", "order_id", o.ID, "payment_id", p.ID, "transaction_ref", p.TransactionRef)
		return p, nil
	}
	slog.Info("Service: Payment initiated", "order_id", o.ID, "payment_id", p.ID, "transaction_ref", p.TransactionRef)

	price := entity.FormatAmount(o.Price)
	s.notifier.Send(ctx, wholesaler.Phone, fmt.Sprintf("M-Pesa payment of %s MWK for order %d initiated. Check your phone.", price, o.ID))
	s.notifier.Send(ctx, o.Listing.FarmerPhone, fmt.Sprintf("Payment of %s MWK for %s KG of %s initiated by %s.",
		price, entity.FormatQuantity(o.Listing.Quantity), o.Listing.CropName, wholesaler.Name))

	messaging.Publish(ctx, s.publisher, strconv.FormatInt(o.ID, 10), entity.PaymentInitiated{
		PaymentID:      p.ID,
		OrderID:        o.ID,
		Amount:         p.Amount,
		TransactionRef: p.TransactionRef,
		InitiatedAt:    s.now(),
	})
	return p, nil
}

// Outcome describes what reconciling one callback did.
type Outcome string

const (
	OutcomeDropped   Outcome = "dropped"   // no transaction reference
	OutcomeUnknown   Outcome = "unknown"   // reference never issued
	OutcomeCompleted Outcome = "completed" // pending → completed, order paid
	OutcomeFailed    Outcome = "failed"    // pending → failed
	OutcomeDuplicate Outcome = "duplicate" // already in a final state
	OutcomeLate      Outcome = "late"      // success after expiry
)

// Reconcile applies a gateway result to the payment it references. Only the
// call that moves the payment out of pending has side effects, so replays are no-ops.
func (s *PaymentService) Reconcile(ctx context.Context, cb Callback) (Outcome, error) {
	if cb.TransactionRef == "" {
		slog.Warn("Payment callback without transaction reference")
		return OutcomeDropped, nil
	}

	if !cb.Succeeded() {
		p, changed, err := s.payments.FailPayment(ctx, cb.TransactionRef)
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("Payment callback for unknown reference", "transaction_ref", cb.TransactionRef)
			return OutcomeUnknown, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to fail payment %s: %w", cb.TransactionRef, err)
		}
		if !changed {
			return OutcomeDuplicate, nil
		}
		slog.Info("Service: Payment failed", "payment_id", p.ID, "order_id", p.OrderID, "result_code", cb.ResultCode, "reason", cb.Description)
		messaging.Publish(ctx, s.publisher, strconv.FormatInt(p.OrderID, 10), entity.PaymentFailedEvent{
			PaymentID:      p.ID,
			OrderID:        p.OrderID,
			TransactionRef: p.TransactionRef,
			ResultCode:     cb.ResultCode,
			Reason:         cb.Description,
			FailedAt:       s.now(),
		})
		return OutcomeFailed, nil
	}

	p, changed, err := s.payments.CompletePayment(ctx, cb.TransactionRef)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Warn("Payment callback for unknown reference", "transaction_ref", cb.TransactionRef)
		return OutcomeUnknown, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to complete payment %s: %w", cb.TransactionRef, err)
	}
	if !changed {
		if p.Status == entity.PaymentFailed {
			// money moved after the sweep gave up on it
			slog.Error("Late payment success for failed payment, needs manual follow-up",
				"payment_id", p.ID, "order_id", p.OrderID, "transaction_ref", p.TransactionRef)
			return OutcomeLate, nil
		}
		return OutcomeDuplicate, nil
	}
	slog.Info("Service: Payment completed", "payment_id", p.ID, "order_id", p.OrderID)

	if o, err := s.orders.FindOrder(ctx, p.OrderID); err != nil {
		slog.Error("Failed to load order for payment confirmation", "order_id", p.OrderID, "err", err)
	} else {
		price := entity.FormatAmount(p.Amount)
		s.notifier.Send(ctx, o.WholesalerPhone, fmt.Sprintf("Payment of %s MWK for order %d confirmed. Thank you for using MlimiZone.", price, o.ID))
		s.notifier.Send(ctx, o.Listing.FarmerPhone, fmt.Sprintf("Payment of %s MWK for %s KG of %s from %s has been confirmed.",
			price, entity.FormatQuantity(o.Listing.Quantity), o.Listing.CropName, o.WholesalerName))
	}

	messaging.Publish(ctx, s.publisher, strconv.FormatInt(p.OrderID, 10), entity.PaymentCompletedEvent{
		PaymentID:      p.ID,
		OrderID:        p.OrderID,
		Amount:         p.Amount,
		TransactionRef: p.TransactionRef,
		CompletedAt:    s.now(),
	})
	return OutcomeCompleted, nil
}

// HandleCallback parses a raw gateway payload and reconciles it.
func (s *PaymentService) HandleCallback(ctx context.Context, payload []byte) (Outcome, error) {
	cb, err := ParseCallback(payload)
	if err != nil {
		return OutcomeDropped, err
	}
	return s.Reconcile(ctx, cb)
}

// ExpireStale fails pending payments older than maxAge. Their orders stay unpaid.
func (s *PaymentService) ExpireStale(ctx context.Context, maxAge time.Duration) ([]entity.Payment, error) {
	expired, err := s.payments.ExpirePendingPayments(ctx, s.now().Add(-maxAge))
	if err != nil {
		return nil, fmt.Errorf("failed to expire pending payments: %w", err)
	}

	for _, p := range expired {
		messaging.Publish(ctx, s.publisher, strconv.FormatInt(p.OrderID, 10), entity.PaymentFailedEvent{
			PaymentID:      p.ID,
			OrderID:        p.OrderID,
			TransactionRef: p.TransactionRef,
			ResultCode:     -1,
			Reason:         "expired",
			FailedAt:       s.now(),
		})
	}
	if len(expired) > 0 {
		slog.Info("Service: Marked pending payments as failed", "count", len(expired), "max_age", maxAge)
	}
	return expired, nil
}
