package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money goes over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// fulfilment order of the non-cancelled statuses
var statusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

// ParseOrderStatus validates a status name.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := statusRank[status]; ok || status == OrderStatusCancelled {
		return status, nil
	}
	return "", fmt.Errorf("invalid order status: %q", s)
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo allows forward moves along Pending -> Processing -> Shipped -> Delivered
// and cancellation from any non-terminal status. Staying in place is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	from, okFrom := statusRank[s]
	to, okTo := statusRank[next]
	return okFrom && okTo && to > from
}

// Payment methods accepted at checkout.
const (
	PaymentMethodCreditCard = "Credit Card"
	PaymentMethodPayPal     = "PayPal"
	PaymentMethodStripe     = "Stripe"
)

// OrderItem represents a single line within an order.
type OrderItem struct {
	ID       string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID  string          `json:"-" gorm:"type:varchar(36);index;not null"`
	BookID   string          `json:"bookId" gorm:"type:varchar(36);not null"`
	Book     *Book           `json:"book,omitempty" gorm:"foreignKey:BookID"`
	Quantity int             `json:"quantity" gorm:"not null"`
	Price    decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"` // unit price at the time of order
}

// ShippingAddress is where an order is delivered.
type ShippingAddress struct {
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// PaymentResult records what the payment provider reported. Stored only.
type PaymentResult struct {
	TransactionID string `json:"id,omitempty"`
	Status        string `json:"status,omitempty"`
	UpdateTime    string `json:"updateTime,omitempty"`
	EmailAddress  string `json:"emailAddress,omitempty"`
}

// Order represents a customer order.
type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID          string          `json:"userId" gorm:"type:varchar(36);index;not null"`
	User            *User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Items           []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	ShippingAddress ShippingAddress `json:"shippingAddress" gorm:"embedded;embeddedPrefix:shipping_"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	PaymentResult   PaymentResult   `json:"paymentResult" gorm:"embedded;embeddedPrefix:payment_"`
	ItemsPrice      decimal.Decimal `json:"itemsPrice" gorm:"type:numeric(12,2);not null"`
	TaxPrice        decimal.Decimal `json:"taxPrice" gorm:"type:numeric(12,2);not null"`
	ShippingPrice   decimal.Decimal `json:"shippingPrice" gorm:"type:numeric(12,2);not null"`
	TotalPrice      decimal.Decimal `json:"totalPrice" gorm:"type:numeric(12,2);not null"`
	IsPaid          bool            `json:"isPaid" gorm:"not null;default:false"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	IsDelivered     bool            `json:"isDelivered" gorm:"not null;default:false"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(20);not null;default:'Pending'"`
	CreatedAt       time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Pricing holds the rules used to total an order.
type Pricing struct {
	TaxRate               decimal.Decimal
	ShippingFlatRate      decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// DefaultPricing is 15% tax and flat 10 shipping, free above 100.
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:               decimal.NewFromFloat(0.15),
		ShippingFlatRate:      decimal.NewFromInt(10),
		FreeShippingThreshold: decimal.NewFromInt(100),
	}
}

// Apply computes item, tax, shipping and total prices from the order's line items.
func (p Pricing) Apply(o *Order) {
	items := decimal.Zero
	for _, item := range o.Items {
		items = items.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	o.ItemsPrice = items.Round(2)
	o.TaxPrice = items.Mul(p.TaxRate).Round(2)
	if items.GreaterThan(p.FreeShippingThreshold) {
		o.ShippingPrice = decimal.Zero
	} else {
		o.ShippingPrice = p.ShippingFlatRate.Round(2)
	}
	o.TotalPrice = o.ItemsPrice.Add(o.TaxPrice).Add(o.ShippingPrice)
}

// OwnedBy reports whether userID placed the order.
func (o *Order) OwnedBy(userID string) bool {
	return o.UserID == userID
}
