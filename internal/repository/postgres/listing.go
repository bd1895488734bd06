package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

type listingRepository struct {
	db *sql.DB
}

// NewListingRepository creates a new ListingRepository backed by Postgres.
func NewListingRepository(db *sql.DB) repository.ListingRepository {
	return &listingRepository{db: db}
}

const listingSelect = `
	SELECT l.id, l.farmer_id, l.crop_id, c.name, l.quantity, l.created_at,
	       f.name, f.phone_number, f.location,
	       EXISTS (SELECT 1 FROM orders o WHERE o.listing_id = l.id)
	FROM listings l
	JOIN crops c ON c.id = l.crop_id
	JOIN accounts f ON f.id = l.farmer_id`

func scanListing(s scanner) (entity.Listing, error) {
	var l entity.Listing
	err := s.Scan(&l.ID, &l.FarmerID, &l.CropID, &l.CropName, &l.Quantity, &l.CreatedAt,
		&l.FarmerName, &l.FarmerPhone, &l.FarmerLocation, &l.Booked)
	return l, err
}

func (r *listingRepository) CreateListing(ctx context.Context, l *entity.Listing) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO listings (farmer_id, crop_id, quantity)
		 SELECT $1::BIGINT, c.id, $3::DOUBLE PRECISION FROM crops c WHERE LOWER(c.name) = LOWER($2)
		 RETURNING id, crop_id, created_at`,
		l.FarmerID, l.CropName, l.Quantity,
	).Scan(&l.ID, &l.CropID, &l.CreatedAt)
	return wrap("insert listing", err)
}

func (r *listingRepository) FindListing(ctx context.Context, id int64) (*entity.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, listingSelect+" WHERE l.id = $1", id))
	if err != nil {
		return nil, wrap("find listing", err)
	}
	return &l, nil
}

func (r *listingRepository) AvailableListings(ctx context.Context, crop string) ([]entity.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		listingSelect+` WHERE LOWER(c.name) = LOWER($1)
		  AND NOT EXISTS (SELECT 1 FROM orders o WHERE o.listing_id = l.id)
		ORDER BY l.id`,
		crop,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var listings []entity.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
