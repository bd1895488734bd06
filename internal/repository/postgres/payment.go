package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new PaymentRepository backed by Postgres.
func NewPaymentRepository(db *sql.DB) repository.PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = "id, order_id, amount, status, transaction_ref, created_at, updated_at"

func scanPayment(s scanner) (entity.Payment, error) {
	var p entity.Payment
	err := s.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.TransactionRef, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *paymentRepository) RecordPendingPayment(ctx context.Context, orderID int64, amount float64, ref string) (*entity.Payment, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Serialise payment attempts per order.
	var locked int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM orders WHERE id = $1 FOR UPDATE", orderID).Scan(&locked); err != nil {
		return nil, false, wrap("lock order", err)
	}

	existing, err := scanPayment(tx.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE transaction_ref = $1", ref,
	))
	switch {
	case err == nil:
		if existing.OrderID != orderID {
			return nil, false, fmt.Errorf("transaction ref %s belongs to order %d: %w", ref, existing.OrderID, repository.ErrConflict)
		}
		return &existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, wrap("find payment by ref", err)
	}

	active, err := scanPayment(tx.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE order_id = $1 AND status <> 'failed'", orderID,
	))
	switch {
	case err == nil:
		return nil, false, fmt.Errorf("order %d has %s payment %s: %w", orderID, active.Status, active.TransactionRef, repository.ErrConflict)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, wrap("find active payment", err)
	}

	p, err := scanPayment(tx.QueryRowContext(ctx,
		"INSERT INTO payments (order_id, amount, status, transaction_ref) VALUES ($1, $2, 'pending', $3) RETURNING "+paymentColumns,
		orderID, amount, ref,
	))
	if err != nil {
		return nil, false, wrap("insert payment", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, wrap("commit payment", err)
	}
	return &p, true, nil
}

func (r *paymentRepository) FindPendingPayment(ctx context.Context, orderID int64) (*entity.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE order_id = $1 AND status = 'pending'", orderID,
	))
	if err != nil {
		return nil, wrap("find pending payment", err)
	}
	return &p, nil
}

func (r *paymentRepository) FindPaymentByRef(ctx context.Context, ref string) (*entity.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE transaction_ref = $1", ref,
	))
	if err != nil {
		return nil, wrap("find payment", err)
	}
	return &p, nil
}

func (r *paymentRepository) CompletePayment(ctx context.Context, ref string) (*entity.Payment, bool, error) {
	return r.transition(ctx, ref, entity.PaymentCompleted)
}

func (r *paymentRepository) FailPayment(ctx context.Context, ref string) (*entity.Payment, bool, error) {
	return r.transition(ctx, ref, entity.PaymentFailed)
}

// transition applies pending → to. Only one concurrent caller can win the
// conditional update; the rest observe the current row and report no change.
func (r *paymentRepository) transition(ctx context.Context, ref string, to entity.PaymentStatus) (*entity.Payment, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPayment(tx.QueryRowContext(ctx,
		"UPDATE payments SET status = $1, updated_at = NOW() WHERE transaction_ref = $2 AND status = 'pending' RETURNING "+paymentColumns,
		to, ref,
	))
	if errors.Is(err, sql.ErrNoRows) {
		current, err := r.FindPaymentByRef(ctx, ref)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, wrap("update payment status", err)
	}

	if to == entity.PaymentCompleted {
		_, err = tx.ExecContext(ctx,
			"UPDATE orders SET status = 'paid', updated_at = NOW() WHERE id = $1 AND status = 'unpaid'",
			p.OrderID,
		)
		if err != nil {
			return nil, false, wrap("mark order paid", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, wrap("commit payment status", err)
	}
	return &p, true, nil
}

func (r *paymentRepository) ExpirePendingPayments(ctx context.Context, before time.Time) ([]entity.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		"UPDATE payments SET status = 'failed', updated_at = NOW() WHERE status = 'pending' AND created_at < $1 RETURNING "+paymentColumns,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to expire payments: %w", err)
	}
	defer rows.Close()

	var expired []entity.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		expired = append(expired, p)
	}
	return expired, rows.Err()
}
