package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/akirachix/mlimizone-backend/internal/repository"
)

// InitDB opens the database, verifies the connection and applies the schema.
func InitDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated")
	return db, nil
}

// NewStore wires every Postgres repository onto one connection pool.
func NewStore(db *sql.DB) repository.Store {
	return repository.Store{
		Accounts: NewAccountRepository(db),
		Catalog:  NewCatalogRepository(db),
		Listings: NewListingRepository(db),
		Orders:   NewOrderRepository(db),
		Payments: NewPaymentRepository(db),
		SMSLogs:  NewSMSLogRepository(db),
	}
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		phone_number TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS crops (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS market_prices (
		id BIGSERIAL PRIMARY KEY,
		crop_id BIGINT NOT NULL REFERENCES crops(id),
		region TEXT NOT NULL,
		price_per_unit DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (crop_id, region)
	);

	CREATE TABLE IF NOT EXISTS listings (
		id BIGSERIAL PRIMARY KEY,
		farmer_id BIGINT NOT NULL REFERENCES accounts(id),
		crop_id BIGINT NOT NULL REFERENCES crops(id),
		quantity DOUBLE PRECISION NOT NULL CHECK (quantity > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS carts (
		id BIGSERIAL PRIMARY KEY,
		wholesaler_id BIGINT NOT NULL UNIQUE REFERENCES accounts(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		cart_id BIGINT NOT NULL REFERENCES carts(id),
		wholesaler_id BIGINT NOT NULL REFERENCES accounts(id),
		listing_id BIGINT NOT NULL UNIQUE REFERENCES listings(id),
		price DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL DEFAULT 'unpaid',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id),
		amount DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		transaction_ref TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	-- at most one live payment per order
	CREATE UNIQUE INDEX IF NOT EXISTS payments_order_active_idx
		ON payments (order_id) WHERE status <> 'failed';

	CREATE INDEX IF NOT EXISTS payments_pending_created_idx
		ON payments (created_at) WHERE status = 'pending';

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		partition_key TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS events_key_idx ON events (topic, partition_key, created_at);

	CREATE TABLE IF NOT EXISTS sms_logs (
		id TEXT PRIMARY KEY,
		phone_number TEXT NOT NULL,
		message_body TEXT NOT NULL,
		status TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`
