package repository

import (
	"context"
	"errors"
	"time"

	"github.com/akirachix/mlimizone-backend/internal/entity"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would violate a uniqueness rule,
	// e.g. a second order on one listing or a reused transaction reference.
	ErrConflict = errors.New("record conflicts with existing data")
)

// AccountRepository handles persistence for Accounts.
type AccountRepository interface {
	FindAccountByPhone(ctx context.Context, phone string) (*entity.Account, error)
	CreateAccount(ctx context.Context, a *entity.Account) error
}

// CatalogRepository handles crops and market prices. Read-only apart from seeding.
type CatalogRepository interface {
	// SeedCrops inserts the given crops if they do not exist.
	SeedCrops(ctx context.Context, names []string) error
	FindCropByName(ctx context.Context, name string) (*entity.Crop, error)
	// PricesForCrop returns all regional prices for a crop ordered by region.
	PricesForCrop(ctx context.Context, crop string) ([]entity.MarketPrice, error)
	FindPrice(ctx context.Context, crop, region string) (*entity.MarketPrice, error)
	UpsertPrice(ctx context.Context, crop, region string, pricePerUnit float64) error
}

// ListingRepository handles persistence for Listings.
type ListingRepository interface {
	CreateListing(ctx context.Context, l *entity.Listing) error
	FindListing(ctx context.Context, id int64) (*entity.Listing, error)
	// AvailableListings returns listings of a crop not yet bound to an order, oldest first.
	AvailableListings(ctx context.Context, crop string) ([]entity.Listing, error)
}

// OrderRepository handles carts and orders.
type OrderRepository interface {
	GetOrCreateCart(ctx context.Context, wholesalerID int64) (*entity.Cart, error)
	// CreateOrder returns ErrConflict when the listing already has an order.
	CreateOrder(ctx context.Context, o *entity.Order) error
	FindOrder(ctx context.Context, id int64) (*entity.Order, error)
	UnpaidOrders(ctx context.Context, wholesalerID int64) ([]entity.Order, error)
}

// PaymentRepository handles persistence for Payments.
type PaymentRepository interface {
	// RecordPendingPayment inserts a pending payment for the order. The bool reports
	// whether this call inserted it; replaying the same reference returns the stored row.
	// A reference used by another order, or a second live payment for the order, yields ErrConflict.
	RecordPendingPayment(ctx context.Context, orderID int64, amount float64, ref string) (*entity.Payment, bool, error)
	// FindPendingPayment returns the order's pending payment or ErrNotFound.
	FindPendingPayment(ctx context.Context, orderID int64) (*entity.Payment, error)
	FindPaymentByRef(ctx context.Context, ref string) (*entity.Payment, error)
	// CompletePayment moves a pending payment to completed and its order to paid.
	// The bool reports whether this call performed the transition.
	CompletePayment(ctx context.Context, ref string) (*entity.Payment, bool, error)
	// FailPayment moves a pending payment to failed. The bool reports whether this call performed the transition.
	FailPayment(ctx context.Context, ref string) (*entity.Payment, bool, error)
	// ExpirePendingPayments fails every pending payment created before the cutoff.
	ExpirePendingPayments(ctx context.Context, before time.Time) ([]entity.Payment, error)
}

// SMSLogRepository records notification attempts.
type SMSLogRepository interface {
	AppendSMSLog(ctx context.Context, l *entity.SMSLog) error
}

// Store aggregates the marketplace repositories of one backend.
type Store struct {
	Accounts AccountRepository
	Catalog  CatalogRepository
	Listings ListingRepository
	Orders   OrderRepository
	Payments PaymentRepository
	SMSLogs  SMSLogRepository
}

// DefaultCrops is the crop enumeration offered in the USSD menus, in menu order.
var DefaultCrops = []string{"Maize", "Peas", "Rice", "Ground nuts"}
