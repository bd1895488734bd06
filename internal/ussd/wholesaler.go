package ussd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
	"github.com/akirachix/mlimizone-backend/internal/service"
	"github.com/akirachix/mlimizone-backend/internal/session"
)

type wholesalerState string

const (
	wholesalerRoot         wholesalerState = "root"
	wholesalerPricesCrop   wholesalerState = "prices_crop_select"
	wholesalerPricesResult wholesalerState = "prices_result"
	wholesalerBookCrop     wholesalerState = "book_crop_select"
	wholesalerBookListing  wholesalerState = "book_listing_select"
	wholesalerBookConfirm  wholesalerState = "book_confirm"
	wholesalerPayOrder     wholesalerState = "pay_order_select"
	wholesalerPayConfirm   wholesalerState = "pay_confirm"
)

// WholesalerMemory is the persisted state of a wholesaler session. Listings and
// Orders hold the ids behind the last numbered menu shown.
type WholesalerMemory struct {
	nav[wholesalerState]
	Crop      string  `json:"crop,omitempty"`
	Listings  []int64 `json:"listing_ids,omitempty"`
	ListingID int64   `json:"listing_id,omitempty"`
	Orders    []int64 `json:"order_ids,omitempty"`
	OrderID   int64   `json:"order_id,omitempty"`
}

func newWholesalerMemory() WholesalerMemory {
	return WholesalerMemory{nav: nav[wholesalerState]{Level: wholesalerRoot}}
}

const msgNoPrice = "No market price available. Contact support."

type wholesalerFlow struct {
	market   Market
	payments Payments
	account  *entity.Account
	mem      WholesalerMemory
}

func (w *wholesalerFlow) flow() session.Flow { return session.FlowWholesaler }
func (w *wholesalerFlow) memory() any        { return w.mem }

func (w *wholesalerFlow) step(ctx context.Context, input string) (reply, error) {
	m := &w.mem
	if m.Level == wholesalerRoot {
		switch input {
		case "1":
			m.push(wholesalerPricesCrop)
		case "2":
			m.push(wholesalerBookCrop)
		case "3":
			m.push(wholesalerPayOrder)
		case inputHome:
			m.home(wholesalerRoot)
		case inputBack:
			m.back(wholesalerRoot)
		default:
			return end(msgInvalidOption), nil
		}
		return w.render(ctx)
	}

	switch input {
	case inputBack:
		m.back(wholesalerRoot)
		return w.render(ctx)
	case inputHome:
		m.home(wholesalerRoot)
		return w.render(ctx)
	}

	switch m.Level {
	case wholesalerPricesCrop:
		crop, ok := cropChoice(input)
		if !ok {
			return end(msgInvalidCrop), nil
		}
		m.Crop = crop
		m.push(wholesalerPricesResult)
		return w.render(ctx)

	case wholesalerPricesResult:
		return end(msgInvalidOption), nil

	case wholesalerBookCrop:
		crop, ok := cropChoice(input)
		if !ok {
			return end(msgInvalidCrop), nil
		}
		m.Crop = crop
		m.push(wholesalerBookListing)
		return w.render(ctx)

	case wholesalerBookListing:
		i, ok := menuIndex(input, len(m.Listings))
		if !ok {
			return end(msgInvalidChoice), nil
		}
		offer, err := w.market.Offer(ctx, m.Listings[i])
		if r, handled, err := bookingFailure(err); handled {
			return r, err
		}
		m.ListingID = offer.Listing.ID
		m.push(wholesalerBookConfirm)
		return confirmBooking(offer), nil

	case wholesalerBookConfirm:
		if input != "1" {
			return end("Booking cancelled."), nil
		}
		return w.book(ctx)

	case wholesalerPayOrder:
		i, ok := menuIndex(input, len(m.Orders))
		if !ok {
			return end(msgInvalidChoice), nil
		}
		o, err := w.market.Order(ctx, m.Orders[i])
		if errors.Is(err, service.ErrOrderNotFound) {
			return end(msgInvalidChoice), nil
		}
		if err != nil {
			return reply{}, err
		}
		if o.Status == entity.OrderPaid {
			return end("This order has already been paid."), nil
		}
		m.OrderID = o.ID
		m.push(wholesalerPayConfirm)
		return confirmPayment(o), nil

	case wholesalerPayConfirm:
		if input != "1" {
			return end("Payment cancelled."), nil
		}
		return w.pay(ctx)
	}
	return reply{}, fmt.Errorf("unknown wholesaler level %q", m.Level)
}

// bookingFailure maps an Offer/Book error to a screen. handled is false when
// err is nil.
func bookingFailure(err error) (reply, bool, error) {
	switch {
	case err == nil:
		return reply{}, false, nil
	case errors.Is(err, service.ErrListingUnavailable):
		return end("This listing is no longer available."), true, nil
	case errors.Is(err, service.ErrNoMarketPrice):
		return withNav(msgNoPrice), true, nil
	}
	return reply{}, true, err
}

func (w *wholesalerFlow) book(ctx context.Context) (reply, error) {
	m := &w.mem
	_, err := w.market.Book(ctx, w.account, m.ListingID)
	if errors.Is(err, service.ErrListingUnavailable) || errors.Is(err, service.ErrNoMarketPrice) {
		r, _, _ := bookingFailure(err)
		return r, nil
	}
	if err != nil {
		slog.Error("Failed to book listing", "listing_id", m.ListingID, "wholesaler_id", w.account.ID, "err", err)
		return end("Error booking."), nil
	}

	m.reset(wholesalerBookCrop, wholesalerRoot)
	m.Listings = nil
	m.ListingID = 0
	return withNav("Booking successful. Go to Pay to complete payment."), nil
}

func (w *wholesalerFlow) pay(ctx context.Context) (reply, error) {
	_, err := w.payments.Initiate(ctx, w.account, w.mem.OrderID)
	var gwErr *service.GatewayError
	switch {
	case err == nil:
		return end("M-Pesa payment initiated. Check your phone for PIN prompt."), nil
	case errors.As(err, &gwErr):
		return withNav("Payment failed: %v. Try again.", gwErr.Err), nil
	case errors.Is(err, service.ErrOrderAlreadyPaid):
		return end("This order has already been paid."), nil
	case errors.Is(err, service.ErrPaymentPending):
		return end("A payment for this order is already pending. Check your phone for PIN prompt."), nil
	case errors.Is(err, repository.ErrConflict):
		slog.Error("Payment reference conflict", "order_id", w.mem.OrderID, "err", err)
		return end("This payment could not be processed. Contact support."), nil
	case errors.Is(err, service.ErrOrderNotFound):
		return withNav("Order not found. Contact support."), nil
	case errors.Is(err, service.ErrInvalidOrderPrice):
		return withNav("Invalid order price. Contact support."), nil
	case errors.Is(err, service.ErrInvalidPhone):
		return withNav("Invalid phone number. Contact support."), nil
	case errors.Is(err, service.ErrInvalidAmount):
		return withNav("Invalid payment amount. Contact support."), nil
	}
	return reply{}, err
}

func (w *wholesalerFlow) render(ctx context.Context) (reply, error) {
	m := &w.mem
	switch m.Level {
	case wholesalerRoot:
		return con(wholesalerMenu), nil
	case wholesalerPricesCrop:
		return cropMenu(titlePricesCrop), nil
	case wholesalerPricesResult:
		prices, err := w.market.Prices(ctx, m.Crop)
		if err != nil {
			return reply{}, err
		}
		return pricesScreen(m.Crop, prices), nil
	case wholesalerBookCrop:
		return cropMenu(titleBookCrop), nil
	case wholesalerBookListing:
		return w.renderOffers(ctx)
	case wholesalerBookConfirm:
		offer, err := w.market.Offer(ctx, m.ListingID)
		if r, handled, err := bookingFailure(err); handled {
			return r, err
		}
		return confirmBooking(offer), nil
	case wholesalerPayOrder:
		return w.renderOrders(ctx)
	case wholesalerPayConfirm:
		o, err := w.market.Order(ctx, m.OrderID)
		if err != nil {
			return reply{}, err
		}
		return confirmPayment(o), nil
	}
	return reply{}, fmt.Errorf("unknown wholesaler level %q", m.Level)
}

// renderOffers re-queries the available listings and remembers their ids.
func (w *wholesalerFlow) renderOffers(ctx context.Context) (reply, error) {
	m := &w.mem
	offers, err := w.market.Offers(ctx, m.Crop)
	if err != nil {
		return reply{}, err
	}
	if len(offers) == 0 {
		return end("No available %s listings.", m.Crop), nil
	}

	m.Listings = make([]int64, len(offers))
	lines := make([]string, len(offers))
	for i, o := range offers {
		m.Listings[i] = o.Listing.ID
		price := "price unavailable"
		if o.Price != nil {
			price = entity.FormatAmount(o.Price.PricePerUnit) + " MWK"
		}
		lines[i] = fmt.Sprintf("%d. %s - %s KG at %s", i+1, o.Listing.FarmerPhone, entity.FormatQuantity(o.Listing.Quantity), price)
	}
	return withNav("Available %s for sale:\n%s", m.Crop, strings.Join(lines, "\n")), nil
}

// renderOrders re-queries the unpaid orders and remembers their ids.
func (w *wholesalerFlow) renderOrders(ctx context.Context) (reply, error) {
	m := &w.mem
	orders, err := w.market.UnpaidOrders(ctx, w.account.ID)
	if err != nil {
		return reply{}, err
	}
	if len(orders) == 0 {
		return end("You have no unpaid orders."), nil
	}

	m.Orders = make([]int64, len(orders))
	lines := make([]string, len(orders))
	for i, o := range orders {
		m.Orders[i] = o.ID
		lines[i] = fmt.Sprintf("%d. %s from %s - %s KG", i+1, o.Listing.CropName, o.Listing.FarmerPhone, entity.FormatQuantity(o.Listing.Quantity))
	}
	return withNav("Your unpaid orders:\n%s", strings.Join(lines, "\n")), nil
}

func confirmBooking(o *service.Offer) reply {
	return reply{text: fmt.Sprintf("Confirm booking for %s from %s - %s KG at %s MWK?\n1. Yes\n2. No",
		o.Listing.CropName, o.Listing.FarmerPhone, entity.FormatQuantity(o.Listing.Quantity),
		entity.FormatAmount(o.Price.PricePerUnit)) + navFooter}
}

func confirmPayment(o *entity.Order) reply {
	return reply{text: fmt.Sprintf("Confirm payment for %s from %s - %s KG (%s MWK)?\n1. Yes\n2. No",
		o.Listing.CropName, o.Listing.FarmerPhone, entity.FormatQuantity(o.Listing.Quantity),
		entity.FormatAmount(o.Price)) + navFooter}
}
