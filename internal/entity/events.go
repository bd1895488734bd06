package entity

import "time"

// Event represents a domain event published to the message broker.
type Event interface {
	EventType() string
	// Topic is the broker topic the event is published on.
	Topic() string
}

// --- Events ---

// AccountRegistered is emitted when the registration flow creates an account.
type AccountRegistered struct {
	AccountID    int64     `json:"account_id"`
	Phone        string    `json:"phone_number"`
	Role         Role      `json:"role"`
	Location     string    `json:"location"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (e AccountRegistered) EventType() string { return "AccountRegistered" }
func (e AccountRegistered) Topic() string     { return "accounts.registered" }

// ListingCreated is emitted when a farmer lists produce.
type ListingCreated struct {
	ListingID    int64     `json:"listing_id"`
	FarmerID     int64     `json:"farmer_id"`
	Crop         string    `json:"crop"`
	Quantity     float64   `json:"quantity"`
	PricePerUnit float64   `json:"price_per_unit"`
	CreatedAt    time.Time `json:"created_at"`
}

func (e ListingCreated) EventType() string { return "ListingCreated" }
func (e ListingCreated) Topic() string     { return "listings.created" }

// OrderBooked is emitted when a wholesaler books a listing.
type OrderBooked struct {
	OrderID      int64     `json:"order_id"`
	ListingID    int64     `json:"listing_id"`
	WholesalerID int64     `json:"wholesaler_id"`
	Price        float64   `json:"price"`
	BookedAt     time.Time `json:"booked_at"`
}

func (e OrderBooked) EventType() string { return "OrderBooked" }
func (e OrderBooked) Topic() string     { return "orders.booked" }

// PaymentInitiated is emitted when the gateway accepts a push payment request.
type PaymentInitiated struct {
	PaymentID      int64     `json:"payment_id"`
	OrderID        int64     `json:"order_id"`
	Amount         float64   `json:"amount"`
	TransactionRef string    `json:"transaction_ref"`
	InitiatedAt    time.Time `json:"initiated_at"`
}

func (e PaymentInitiated) EventType() string { return "PaymentInitiated" }
func (e PaymentInitiated) Topic() string     { return "payments.initiated" }

// PaymentCompletedEvent is emitted when a success callback settles an order.
type PaymentCompletedEvent struct {
	PaymentID      int64     `json:"payment_id"`
	OrderID        int64     `json:"order_id"`
	Amount         float64   `json:"amount"`
	TransactionRef string    `json:"transaction_ref"`
	CompletedAt    time.Time `json:"completed_at"`
}

func (e PaymentCompletedEvent) EventType() string { return "PaymentCompleted" }
func (e PaymentCompletedEvent) Topic() string     { return "payments.completed" }

// PaymentFailedEvent is emitted when the gateway reports a failed payment.
type PaymentFailedEvent struct {
	PaymentID      int64     `json:"payment_id"`
	OrderID        int64     `json:"order_id"`
	TransactionRef string    `json:"transaction_ref"`
	ResultCode     int       `json:"result_code"`
	Reason         string    `json:"reason"`
	FailedAt       time.Time `json:"failed_at"`
}

func (e PaymentFailedEvent) EventType() string { return "PaymentFailed" }
func (e PaymentFailedEvent) Topic() string     { return "payments.failed" }
