package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) GetOrCreateCart(ctx context.Context, wholesalerID int64) (*entity.Cart, error) {
	c := entity.Cart{WholesalerID: wholesalerID}
	// The no-op update makes RETURNING yield the existing row on conflict.
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO carts (wholesaler_id) VALUES ($1)
		 ON CONFLICT (wholesaler_id) DO UPDATE SET wholesaler_id = EXCLUDED.wholesaler_id
		 RETURNING id, created_at`,
		wholesalerID,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, wrap("get or create cart", err)
	}
	return &c, nil
}

func (r *orderRepository) CreateOrder(ctx context.Context, o *entity.Order) error {
	o.Status = entity.OrderUnpaid
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO orders (cart_id, wholesaler_id, listing_id, price, status) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at",
		o.CartID, o.WholesalerID, o.ListingID, o.Price, o.Status,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	return wrap("insert order", err)
}

const orderSelect = `
	SELECT o.id, o.cart_id, o.wholesaler_id, o.listing_id, o.price, o.status, o.created_at, o.updated_at,
	       w.name, w.phone_number,
	       l.id, l.farmer_id, l.crop_id, c.name, l.quantity, l.created_at,
	       f.name, f.phone_number, f.location
	FROM orders o
	JOIN accounts w ON w.id = o.wholesaler_id
	JOIN listings l ON l.id = o.listing_id
	JOIN crops c ON c.id = l.crop_id
	JOIN accounts f ON f.id = l.farmer_id`

func scanOrder(s scanner) (entity.Order, error) {
	var o entity.Order
	l := &o.Listing
	err := s.Scan(&o.ID, &o.CartID, &o.WholesalerID, &o.ListingID, &o.Price, &o.Status, &o.CreatedAt, &o.UpdatedAt,
		&o.WholesalerName, &o.WholesalerPhone,
		&l.ID, &l.FarmerID, &l.CropID, &l.CropName, &l.Quantity, &l.CreatedAt,
		&l.FarmerName, &l.FarmerPhone, &l.FarmerLocation)
	l.Booked = true
	return o, err
}

func (r *orderRepository) FindOrder(ctx context.Context, id int64) (*entity.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, orderSelect+" WHERE o.id = $1", id))
	if err != nil {
		return nil, wrap("find order", err)
	}
	return &o, nil
}

func (r *orderRepository) UnpaidOrders(ctx context.Context, wholesalerID int64) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		orderSelect+" WHERE o.wholesaler_id = $1 AND o.status = 'unpaid' ORDER BY o.id",
		wholesalerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
