package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/gazetteer"
	"github.com/akirachix/mlimizone-backend/internal/messaging"
	"github.com/akirachix/mlimizone-backend/internal/notify"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

// MarketService covers prices, produce listings and bookings.
type MarketService struct {
	catalog   repository.CatalogRepository
	listings  repository.ListingRepository
	orders    repository.OrderRepository
	districts *gazetteer.Gazetteer
	notifier  notify.Notifier
	publisher messaging.Publisher
}

func NewMarketService(
	catalog repository.CatalogRepository,
	listings repository.ListingRepository,
	orders repository.OrderRepository,
	districts *gazetteer.Gazetteer,
	notifier notify.Notifier,
	publisher messaging.Publisher,
) *MarketService {
	return &MarketService{
		catalog:   catalog,
		listings:  listings,
		orders:    orders,
		districts: districts,
		notifier:  notifier,
		publisher: publisher,
	}
}

// Region maps a stored district to its market region.
func (s *MarketService) Region(district string) string {
	return s.districts.RegionOrDefault(district)
}

// Prices returns every regional price of a crop ordered by region.
func (s *MarketService) Prices(ctx context.Context, crop string) ([]entity.MarketPrice, error) {
	return s.catalog.PricesForCrop(ctx, crop)
}

// PriceForDistrict resolves the price of a crop in the region of a district.
func (s *MarketService) PriceForDistrict(ctx context.Context, crop, district string) (*entity.MarketPrice, error) {
	region := s.Region(district)
	p, err := s.catalog.FindPrice(ctx, crop, region)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w for %s in %s", ErrNoMarketPrice, crop, region)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListingReceipt is what a farmer is told after listing produce.
type ListingReceipt struct {
	Listing      entity.Listing
	PricePerUnit float64
	Total        float64
}

// ListProduce records a farmer's offer priced at the farmer's regional market price.
func (s *MarketService) ListProduce(ctx context.Context, farmer *entity.Account, crop string, quantity float64) (*ListingReceipt, error) {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	price, err := s.PriceForDistrict(ctx, crop, farmer.Location)
	if err != nil {
		return nil, err
	}

	l := &entity.Listing{FarmerID: farmer.ID, CropName: crop, Quantity: quantity}
	if err := s.listings.CreateListing(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	total := quantity * price.PricePerUnit
	slog.Info("Service: Listed produce", "listing_id", l.ID, "farmer_id", farmer.ID, "crop", l.CropName, "quantity", quantity)

	s.notifier.Send(ctx, farmer.Phone, fmt.Sprintf("Listed %s KG of %s at %s MWK/kg. Total: %s MWK",
		entity.FormatQuantity(quantity), l.CropName, entity.FormatAmount(price.PricePerUnit), entity.FormatAmount(total)))

	messaging.Publish(ctx, s.publisher, strconv.FormatInt(l.ID, 10), entity.ListingCreated{
		ListingID:    l.ID,
		FarmerID:     farmer.ID,
		Crop:         l.CropName,
		Quantity:     quantity,
		PricePerUnit: price.PricePerUnit,
		CreatedAt:    l.CreatedAt,
	})
	return &ListingReceipt{Listing: *l, PricePerUnit: price.PricePerUnit, Total: total}, nil
}

// Offer is an available listing with the market price of its farmer's region.
// Price is nil when that region has no price for the crop.
type Offer struct {
	Listing entity.Listing
	Price   *entity.MarketPrice
}

// Offers returns the unbooked listings of a crop.
func (s *MarketService) Offers(ctx context.Context, crop string) ([]Offer, error) {
	listings, err := s.listings.AvailableListings(ctx, crop)
	if err != nil {
		return nil, err
	}

	offers := make([]Offer, 0, len(listings))
	for _, l := range listings {
		o := Offer{Listing: l}
		p, err := s.PriceForDistrict(ctx, l.CropName, l.FarmerLocation)
		switch {
		case err == nil:
			o.Price = p
		case !errors.Is(err, ErrNoMarketPrice):
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, nil
}

// Offer resolves one listing for booking. Booked or missing listings yield
// ErrListingUnavailable; a missing regional price yields ErrNoMarketPrice.
func (s *MarketService) Offer(ctx context.Context, listingID int64) (*Offer, error) {
	l, err := s.listings.FindListing(ctx, listingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrListingUnavailable
	}
	if err != nil {
		return nil, err
	}
	if l.Booked {
		return nil, ErrListingUnavailable
	}

	p, err := s.PriceForDistrict(ctx, l.CropName, l.FarmerLocation)
	if err != nil {
		return nil, err
	}
	return &Offer{Listing: *l, Price: p}, nil
}

// Book creates an unpaid order for the listing at quantity × current regional price.
// Exactly one of several concurrent bookings of a listing succeeds; the others get ErrListingUnavailable.
func (s *MarketService) Book(ctx context.Context, wholesaler *entity.Account, listingID int64) (*entity.Order, error) {
	offer, err := s.Offer(ctx, listingID)
	if err != nil {
		return nil, err
	}

	cart, err := s.orders.GetOrCreateCart(ctx, wholesaler.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	l := offer.Listing
	o := &entity.Order{
		CartID:       cart.ID,
		WholesalerID: wholesaler.ID,
		ListingID:    l.ID,
		Price:        l.Quantity * offer.Price.PricePerUnit,
	}
	if err := s.orders.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			slog.Warn("Service: Listing booked concurrently", "listing_id", l.ID, "wholesaler_id", wholesaler.ID)
			return nil, ErrListingUnavailable
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	o.WholesalerName = wholesaler.Name
	o.WholesalerPhone = wholesaler.Phone
	l.Booked = true
	o.Listing = l
	slog.Info("Service: Booked listing", "order_id", o.ID, "listing_id", l.ID, "wholesaler_id", wholesaler.ID, "price", o.Price)

	qty := entity.FormatQuantity(l.Quantity)
	amount := entity.FormatAmount(o.Price)
	s.notifier.Send(ctx, wholesaler.Phone, fmt.Sprintf("Booked %s KG of %s from %s for %s MWK", qty, l.CropName, l.FarmerPhone, amount))
	s.notifier.Send(ctx, l.FarmerPhone, fmt.Sprintf("Your %s KG of %s has been booked by %s. Expect payment of %s MWK soon.", qty, l.CropName, wholesaler.Name, amount))

	messaging.Publish(ctx, s.publisher, strconv.FormatInt(o.ID, 10), entity.OrderBooked{
		OrderID:      o.ID,
		ListingID:    l.ID,
		WholesalerID: wholesaler.ID,
		Price:        o.Price,
		BookedAt:     time.Now(),
	})
	return o, nil
}

// UnpaidOrders lists a wholesaler's unpaid orders, oldest first.
func (s *MarketService) UnpaidOrders(ctx context.Context, wholesalerID int64) ([]entity.Order, error) {
	return s.orders.UnpaidOrders(ctx, wholesalerID)
}

// Order returns ErrOrderNotFound for unknown ids.
func (s *MarketService) Order(ctx context.Context, id int64) (*entity.Order, error) {
	o, err := s.orders.FindOrder(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return o, err
}
