package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

func seedOrder(t *testing.T, s *Store) (*entity.Order, *entity.Listing) {
	t.Helper()
	ctx := context.Background()

	farmer := &entity.Account{Name: "Jane", Phone: "254700000001", Role: entity.RoleFarmer, Location: "Blantyre"}
	require.NoError(t, s.CreateAccount(ctx, farmer))
	buyer := &entity.Account{Name: "Bob", Phone: "254700000002", Role: entity.RoleWholesaler, Location: "Lilongwe"}
	require.NoError(t, s.CreateAccount(ctx, buyer))

	l := &entity.Listing{FarmerID: farmer.ID, CropName: "Maize", Quantity: 50}
	require.NoError(t, s.CreateListing(ctx, l))

	cart, err := s.GetOrCreateCart(ctx, buyer.ID)
	require.NoError(t, err)

	o := &entity.Order{CartID: cart.ID, WholesalerID: buyer.ID, ListingID: l.ID, Price: 5000}
	require.NoError(t, s.CreateOrder(ctx, o))
	return o, l
}

func TestCreateAccount_DuplicatePhone(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.CreateAccount(ctx, &entity.Account{Phone: "254700000001"}))
	err := s.CreateAccount(ctx, &entity.Account{Phone: "254700000001"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = s.FindAccountByPhone(ctx, "254799999999")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPricesForCrop_OrderedByRegion(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertPrice(ctx, "Maize", "Southern Region", 100))
	require.NoError(t, s.UpsertPrice(ctx, "Maize", "Central Region", 90))
	require.NoError(t, s.UpsertPrice(ctx, "Rice", "Central Region", 300))

	prices, err := s.PricesForCrop(ctx, "Maize")
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, "Central Region", prices[0].Region)
	assert.Equal(t, "Southern Region", prices[1].Region)

	assert.ErrorIs(t, s.UpsertPrice(ctx, "Coffee", "Central Region", 1), repository.ErrNotFound)
}

func TestCreateOrder_ListingBoundOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	o, l := seedOrder(t, s)

	err := s.CreateOrder(ctx, &entity.Order{WholesalerID: o.WholesalerID, ListingID: l.ID, Price: 1})
	assert.ErrorIs(t, err, repository.ErrConflict)

	avail, err := s.AvailableListings(ctx, "Maize")
	require.NoError(t, err)
	assert.Empty(t, avail)

	got, err := s.FindListing(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.Booked)
	assert.Equal(t, "254700000001", got.FarmerPhone)
}

func TestCreateOrder_Concurrent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	o, _ := seedOrder(t, s)

	farmer, err := s.FindAccountByPhone(ctx, "254700000001")
	require.NoError(t, err)
	l := &entity.Listing{FarmerID: farmer.ID, CropName: "Peas", Quantity: 10}
	require.NoError(t, s.CreateListing(ctx, l))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.CreateOrder(ctx, &entity.Order{WholesalerID: o.WholesalerID, ListingID: l.ID, Price: 10})
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		if err == nil {
			ok++
		} else if assert.ErrorIs(t, err, repository.ErrConflict) {
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, conflicts)
}

func TestRecordPendingPayment(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	o, _ := seedOrder(t, s)

	p1, created, err := s.RecordPendingPayment(ctx, o.ID, 5000, "ws_CO_1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, entity.PaymentPending, p1.Status)

	// same reference replayed
	again, created, err := s.RecordPendingPayment(ctx, o.ID, 5000, "ws_CO_1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p1.ID, again.ID)

	// a second reference while one is pending is refused and the first stays bound
	_, _, err = s.RecordPendingPayment(ctx, o.ID, 5000, "ws_CO_2")
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := s.FindPaymentByRef(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, got.ID)
	_, err = s.FindPaymentByRef(ctx, "ws_CO_2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	pending, err := s.FindPendingPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", pending.TransactionRef)
}

func TestRecordPendingPayment_RefUsedByOtherOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	o, _ := seedOrder(t, s)

	farmer, err := s.FindAccountByPhone(ctx, "254700000001")
	require.NoError(t, err)
	l := &entity.Listing{FarmerID: farmer.ID, CropName: "Rice", Quantity: 5}
	require.NoError(t, s.CreateListing(ctx, l))
	o2 := &entity.Order{WholesalerID: o.WholesalerID, ListingID: l.ID, Price: 10}
	require.NoError(t, s.CreateOrder(ctx, o2))

	_, _, err = s.RecordPendingPayment(ctx, o.ID, 5000, "ws_CO_1")
	require.NoError(t, err)
	_, _, err = s.RecordPendingPayment(ctx, o2.ID, 10, "ws_CO_1")
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestCompletePayment_Idempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	o, _ := seedOrder(t, s)

	_, _, err := s.RecordPendingPayment(ctx, o.ID, 5000, "ws_CO_1")
	require.NoError(t, err)

	p, changed, err := s.CompletePayment(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, entity.PaymentCompleted, p.Status)

	_, changed, err = s.CompletePayment(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := s.FindOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderPaid, got.Status)

	unpaid, err := s.UnpaidOrders(ctx, o.WholesalerID)
	require.NoError(t, err)
	assert.Empty(t, unpaid)

	_, _, err = s.RecordPendingPayment(ctx, o.ID, 5000, "ws_CO_9")
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, _, err = s.CompletePayment(ctx, "unknown")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFailPayment_AllowsNewAttempt(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	o, _ := seedOrder(t, s)

	first, _, err := s.RecordPendingPayment(ctx, o.ID, 5000, "ws_CO_1")
	require.NoError(t, err)

	_, changed, err := s.FailPayment(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.True(t, changed)

	second, created, err := s.RecordPendingPayment(ctx, o.ID, 5000, "ws_CO_2")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = s.FindPendingPayment(ctx, o.ID)
	require.NoError(t, err)

	got, err := s.FindOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderUnpaid, got.Status)
}

func TestExpirePendingPayments(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	o, _ := seedOrder(t, s)

	_, _, err := s.RecordPendingPayment(ctx, o.ID, 5000, "ws_CO_1")
	require.NoError(t, err)

	expired, err := s.ExpirePendingPayments(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, expired)

	expired, err = s.ExpirePendingPayments(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, entity.PaymentFailed, expired[0].Status)

	_, changed, err := s.CompletePayment(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.False(t, changed)
}
