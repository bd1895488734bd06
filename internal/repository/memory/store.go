// Package memory is an in-process implementation of the marketplace repositories,
// used for local development and tests. It enforces the same uniqueness rules as
// the Postgres schema.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

type Store struct {
	mu sync.RWMutex

	seq int64

	accounts map[string]*entity.Account // by phone
	crops    map[string]*entity.Crop    // by lower-cased name
	prices   map[string]*entity.MarketPrice
	listings map[int64]*entity.Listing
	carts    map[int64]*entity.Cart // by wholesaler
	orders   map[int64]*entity.Order
	payments map[int64]*entity.Payment
	smsLogs  []entity.SMSLog

	orderByListing map[int64]int64
	paymentByRef   map[string]int64
}

// NewStore returns an empty store seeded with the default crops.
func NewStore() *Store {
	s := &Store{
		accounts:       make(map[string]*entity.Account),
		crops:          make(map[string]*entity.Crop),
		prices:         make(map[string]*entity.MarketPrice),
		listings:       make(map[int64]*entity.Listing),
		carts:          make(map[int64]*entity.Cart),
		orders:         make(map[int64]*entity.Order),
		payments:       make(map[int64]*entity.Payment),
		orderByListing: make(map[int64]int64),
		paymentByRef:   make(map[string]int64),
	}
	_ = s.SeedCrops(context.Background(), repository.DefaultCrops)
	return s
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Accounts: s,
		Catalog:  s,
		Listings: s,
		Orders:   s,
		Payments: s,
		SMSLogs:  s,
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func priceKey(crop, region string) string {
	return strings.ToLower(crop) + "|" + strings.ToLower(region)
}

// --- Accounts ---

func (s *Store) FindAccountByPhone(ctx context.Context, phone string) (*entity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[phone]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *entity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.Phone]; exists {
		return fmt.Errorf("account %s: %w", a.Phone, repository.ErrConflict)
	}
	a.ID = s.nextID()
	a.CreatedAt = time.Now()
	cp := *a
	s.accounts[a.Phone] = &cp
	return nil
}

func (s *Store) accountByID(id int64) *entity.Account {
	for _, a := range s.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// --- Catalog ---

func (s *Store) SeedCrops(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range names {
		key := strings.ToLower(n)
		if _, ok := s.crops[key]; ok {
			continue
		}
		s.crops[key] = &entity.Crop{ID: s.nextID(), Name: n}
	}
	return nil
}

func (s *Store) FindCropByName(ctx context.Context, name string) (*entity.Crop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.crops[strings.ToLower(name)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) PricesForCrop(ctx context.Context, crop string) ([]entity.MarketPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.MarketPrice
	for _, p := range s.prices {
		if strings.EqualFold(p.CropName, crop) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out, nil
}

func (s *Store) FindPrice(ctx context.Context, crop, region string) (*entity.MarketPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[priceKey(crop, region)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) UpsertPrice(ctx context.Context, crop, region string, pricePerUnit float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.crops[strings.ToLower(crop)]
	if !ok {
		return fmt.Errorf("crop %s: %w", crop, repository.ErrNotFound)
	}
	key := priceKey(crop, region)
	if p, ok := s.prices[key]; ok {
		p.PricePerUnit = pricePerUnit
		p.UpdatedAt = time.Now()
		return nil
	}
	s.prices[key] = &entity.MarketPrice{
		ID:           s.nextID(),
		CropID:       c.ID,
		CropName:     c.Name,
		Region:       region,
		PricePerUnit: pricePerUnit,
		UpdatedAt:    time.Now(),
	}
	return nil
}

// --- Listings ---

func (s *Store) CreateListing(ctx context.Context, l *entity.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.crops[strings.ToLower(l.CropName)]
	if !ok {
		return fmt.Errorf("crop %s: %w", l.CropName, repository.ErrNotFound)
	}
	if s.accountByID(l.FarmerID) == nil {
		return fmt.Errorf("farmer %d: %w", l.FarmerID, repository.ErrNotFound)
	}
	l.ID = s.nextID()
	l.CropID = c.ID
	l.CropName = c.Name
	l.CreatedAt = time.Now()
	cp := *l
	s.listings[l.ID] = &cp
	return nil
}

func (s *Store) listingView(l *entity.Listing) entity.Listing {
	v := *l
	if f := s.accountByID(l.FarmerID); f != nil {
		v.FarmerName = f.Name
		v.FarmerPhone = f.Phone
		v.FarmerLocation = f.Location
	}
	_, v.Booked = s.orderByListing[l.ID]
	return v
}

func (s *Store) FindListing(ctx context.Context, id int64) (*entity.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v := s.listingView(l)
	return &v, nil
}

func (s *Store) AvailableListings(ctx context.Context, crop string) ([]entity.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.Listing
	for _, l := range s.listings {
		if !strings.EqualFold(l.CropName, crop) {
			continue
		}
		if _, booked := s.orderByListing[l.ID]; booked {
			continue
		}
		out = append(out, s.listingView(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Carts & orders ---

func (s *Store) GetOrCreateCart(ctx context.Context, wholesalerID int64) (*entity.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.carts[wholesalerID]; ok {
		cp := *c
		return &cp, nil
	}
	c := &entity.Cart{ID: s.nextID(), WholesalerID: wholesalerID, CreatedAt: time.Now()}
	s.carts[wholesalerID] = c
	cp := *c
	return &cp, nil
}

func (s *Store) CreateOrder(ctx context.Context, o *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[o.ListingID]; !ok {
		return fmt.Errorf("listing %d: %w", o.ListingID, repository.ErrNotFound)
	}
	if _, booked := s.orderByListing[o.ListingID]; booked {
		return fmt.Errorf("listing %d already ordered: %w", o.ListingID, repository.ErrConflict)
	}

	now := time.Now()
	o.ID = s.nextID()
	o.Status = entity.OrderUnpaid
	o.CreatedAt = now
	o.UpdatedAt = now
	cp := *o
	s.orders[o.ID] = &cp
	s.orderByListing[o.ListingID] = o.ID
	return nil
}

func (s *Store) orderView(o *entity.Order) entity.Order {
	v := *o
	if w := s.accountByID(o.WholesalerID); w != nil {
		v.WholesalerName = w.Name
		v.WholesalerPhone = w.Phone
	}
	if l, ok := s.listings[o.ListingID]; ok {
		v.Listing = s.listingView(l)
	}
	return v
}

func (s *Store) FindOrder(ctx context.Context, id int64) (*entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v := s.orderView(o)
	return &v, nil
}

func (s *Store) UnpaidOrders(ctx context.Context, wholesalerID int64) ([]entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.Order
	for _, o := range s.orders {
		if o.WholesalerID == wholesalerID && o.Status == entity.OrderUnpaid {
			out = append(out, s.orderView(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Payments ---

func (s *Store) RecordPendingPayment(ctx context.Context, orderID int64, amount float64, ref string) (*entity.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; !ok {
		return nil, false, fmt.Errorf("order %d: %w", orderID, repository.ErrNotFound)
	}
	if id, ok := s.paymentByRef[ref]; ok {
		p := s.payments[id]
		if p.OrderID != orderID {
			return nil, false, fmt.Errorf("transaction ref %s: %w", ref, repository.ErrConflict)
		}
		cp := *p
		return &cp, false, nil
	}
	for _, p := range s.payments {
		if p.OrderID == orderID && p.Status != entity.PaymentFailed {
			return nil, false, fmt.Errorf("order %d has %s payment %s: %w", orderID, p.Status, p.TransactionRef, repository.ErrConflict)
		}
	}

	now := time.Now()
	p := &entity.Payment{
		ID:             s.nextID(),
		OrderID:        orderID,
		Amount:         amount,
		Status:         entity.PaymentPending,
		TransactionRef: ref,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.payments[p.ID] = p
	s.paymentByRef[ref] = p.ID
	cp := *p
	return &cp, true, nil
}

func (s *Store) FindPendingPayment(ctx context.Context, orderID int64) (*entity.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.payments {
		if p.OrderID == orderID && p.Status == entity.PaymentPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) FindPaymentByRef(ctx context.Context, ref string) (*entity.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.paymentByRef[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s.payments[id]
	return &cp, nil
}

func (s *Store) transition(ref string, to entity.PaymentStatus) (*entity.Payment, bool, error) {
	id, ok := s.paymentByRef[ref]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	p := s.payments[id]
	if p.Status != entity.PaymentPending {
		cp := *p
		return &cp, false, nil
	}

	now := time.Now()
	p.Status = to
	p.UpdatedAt = now
	if to == entity.PaymentCompleted {
		if o, ok := s.orders[p.OrderID]; ok {
			o.Status = entity.OrderPaid
			o.UpdatedAt = now
		}
	}
	cp := *p
	return &cp, true, nil
}

func (s *Store) CompletePayment(ctx context.Context, ref string) (*entity.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(ref, entity.PaymentCompleted)
}

func (s *Store) FailPayment(ctx context.Context, ref string) (*entity.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(ref, entity.PaymentFailed)
}

func (s *Store) ExpirePendingPayments(ctx context.Context, before time.Time) ([]entity.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []entity.Payment
	for _, p := range s.payments {
		if p.Status == entity.PaymentPending && p.CreatedAt.Before(before) {
			p.Status = entity.PaymentFailed
			p.UpdatedAt = time.Now()
			expired = append(expired, *p)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired, nil
}

// --- SMS logs ---

func (s *Store) AppendSMSLog(ctx context.Context, l *entity.SMSLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.smsLogs = append(s.smsLogs, *l)
	return nil
}

// SMSLogs returns a copy of every recorded notification attempt.
func (s *Store) SMSLogs() []entity.SMSLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.SMSLog, len(s.smsLogs))
	copy(out, s.smsLogs)
	return out
}
