package entity

import (
	"time"
)

// Role is an account's marketplace role.
type Role string

const (
	RoleFarmer     Role = "farmer"
	RoleWholesaler Role = "wholesaler"
	RoleAdmin      Role = "admin"
)

// Account is a registered subscriber, identified by canonical phone number.
type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Location  string    `json:"location"` // district
	Phone     string    `json:"phone_number"`
	CreatedAt time.Time `json:"created_at"`
}

// Crop is a tradable commodity.
type Crop struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MarketPrice is the published price of a crop in a region.
type MarketPrice struct {
	ID           int64     `json:"id"`
	CropID       int64     `json:"crop_id"`
	CropName     string    `json:"crop_name"`
	Region       string    `json:"region"`
	PricePerUnit float64   `json:"price_per_unit"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Listing is a farmer's offer of a quantity of a crop.
type Listing struct {
	ID       int64   `json:"id"`
	FarmerID int64   `json:"farmer_id"`
	CropID   int64   `json:"crop_id"`
	CropName string  `json:"crop_name"`
	Quantity float64 `json:"quantity"`
	// Booked is true once an order references the listing.
	Booked    bool      `json:"booked"`
	CreatedAt time.Time `json:"created_at"`

	FarmerName     string `json:"farmer_name"`
	FarmerPhone    string `json:"farmer_phone"`
	FarmerLocation string `json:"farmer_location"`
}

// Cart groups a wholesaler's orders.
type Cart struct {
	ID           int64     `json:"id"`
	WholesalerID int64     `json:"wholesaler_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// OrderStatus is either unpaid or paid.
type OrderStatus string

const (
	OrderUnpaid OrderStatus = "unpaid"
	OrderPaid   OrderStatus = "paid"
)

// Order is a wholesaler's booking of one listing at a fixed price.
type Order struct {
	ID           int64       `json:"id"`
	CartID       int64       `json:"cart_id"`
	WholesalerID int64       `json:"wholesaler_id"`
	ListingID    int64       `json:"listing_id"`
	Price        float64     `json:"price"`
	Status       OrderStatus `json:"status"` // "unpaid", "paid"
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`

	WholesalerName  string  `json:"wholesaler_name"`
	WholesalerPhone string  `json:"wholesaler_phone"`
	Listing         Listing `json:"listing"`
}

// PaymentStatus tracks a push payment through the gateway.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is one attempt to settle an order, joined to gateway callbacks by TransactionRef.
type Payment struct {
	ID             int64         `json:"id"`
	OrderID        int64         `json:"order_id"`
	Amount         float64       `json:"amount"`
	Status         PaymentStatus `json:"status"`
	TransactionRef string        `json:"transaction_ref"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SMSStatus records whether the SMS provider accepted a message.
type SMSStatus string

const (
	SMSDelivered SMSStatus = "delivered"
	SMSFailed    SMSStatus = "failed"
)

// SMSLog is an audit row for every notification attempt.
type SMSLog struct {
	ID     string    `json:"id"`
	Phone  string    `json:"phone_number"`
	Body   string    `json:"message_body"`
	Status SMSStatus `json:"status"`
	SentAt time.Time `json:"sent_at"`
}
