package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new CatalogRepository backed by Postgres.
func NewCatalogRepository(db *sql.DB) repository.CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) SeedCrops(ctx context.Context, names []string) error {
	for _, n := range names {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO crops (name) VALUES ($1) ON CONFLICT (name) DO NOTHING",
			n,
		)
		if err != nil {
			return fmt.Errorf("failed to seed crop %s: %w", n, err)
		}
	}
	return nil
}

func (r *catalogRepository) FindCropByName(ctx context.Context, name string) (*entity.Crop, error) {
	var c entity.Crop
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name FROM crops WHERE LOWER(name) = LOWER($1)",
		name,
	).Scan(&c.ID, &c.Name)
	if err != nil {
		return nil, wrap("find crop", err)
	}
	return &c, nil
}

const priceColumns = "p.id, p.crop_id, c.name, p.region, p.price_per_unit, p.updated_at"

func scanPrice(s scanner) (entity.MarketPrice, error) {
	var p entity.MarketPrice
	err := s.Scan(&p.ID, &p.CropID, &p.CropName, &p.Region, &p.PricePerUnit, &p.UpdatedAt)
	return p, err
}

func (r *catalogRepository) PricesForCrop(ctx context.Context, crop string) ([]entity.MarketPrice, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+priceColumns+" FROM market_prices p JOIN crops c ON c.id = p.crop_id WHERE LOWER(c.name) = LOWER($1) ORDER BY p.region",
		crop,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query market prices: %w", err)
	}
	defer rows.Close()

	var prices []entity.MarketPrice
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func (r *catalogRepository) FindPrice(ctx context.Context, crop, region string) (*entity.MarketPrice, error) {
	p, err := scanPrice(r.db.QueryRowContext(ctx,
		"SELECT "+priceColumns+" FROM market_prices p JOIN crops c ON c.id = p.crop_id WHERE LOWER(c.name) = LOWER($1) AND p.region = $2",
		crop, region,
	))
	if err != nil {
		return nil, wrap("find market price", err)
	}
	return &p, nil
}

func (r *catalogRepository) UpsertPrice(ctx context.Context, crop, region string, pricePerUnit float64) error {
	c, err := r.FindCropByName(ctx, crop)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO market_prices (crop_id, region, price_per_unit, updated_at) VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (crop_id, region) DO UPDATE SET price_per_unit = EXCLUDED.price_per_unit, updated_at = NOW()`,
		c.ID, region, pricePerUnit,
	)
	return wrap("upsert market price", err)
}
