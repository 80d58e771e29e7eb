package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the controlled field of the order state machine.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "Pending"
	StatusPaid     PaymentStatus = "Paid"
	StatusFailed   PaymentStatus = "Failed"
	StatusCanceled PaymentStatus = "Canceled"
)

// Terminal reports whether s is absorbing.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// CanTransition reports whether s may move to next.
// Only Pending → {Paid, Failed, Canceled} is allowed.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	return s == StatusPending && next.Terminal()
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	MethodCashOnDelivery PaymentMethod = "Cash on Delivery"
	MethodCard           PaymentMethod = "Card"
)

// LineItem is one row of the cart snapshot taken at checkout.
type LineItem struct {
	ProductID string          `json:"productId" validate:"required,max=64"`
	Name      string          `json:"name,omitempty" validate:"nullable,max=255"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity  int             `json:"qty" validate:"gt=0"`
}

// Subtotal is price × quantity.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderData is the immutable cart snapshot.
type OrderData []LineItem

// Total sums all line-item subtotals.
func (d OrderData) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Order is one checkout attempt. Contact fields are a snapshot taken at
// creation and are never re-read from the user afterwards.
type Order struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"size:64;not null;index" json:"userId"`

	Email       string `gorm:"size:255;not null" json:"email"`
	FullName    string `gorm:"size:255;not null" json:"fullName"`
	PhoneNumber string `gorm:"size:64;not null" json:"phoneNumber"`
	Address     string `gorm:"type:text;not null" json:"address"`

	PaymentMethod PaymentMethod `gorm:"size:32;not null" json:"paymentMethod"`
	PaymentStatus PaymentStatus `gorm:"size:16;not null;default:Pending;index" json:"paymentStatus"`

	OrderData OrderData       `gorm:"serializer:json;type:text;not null" json:"orderData"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Currency  string          `gorm:"size:8;not null" json:"currency"`

	// Provider is the gateway the intent was opened with ("" for cash on delivery).
	Provider        string  `gorm:"size:32;index" json:"provider,omitempty"`
	PaymentIntentID *string `gorm:"size:255;uniqueIndex" json:"paymentIntentId"`
	IdempotencyKey  string  `gorm:"size:128;not null;uniqueIndex" json:"-"`

	// ClientTokenEnc is the gateway's client token/URL, encrypted at rest.
	ClientTokenEnc string `gorm:"type:text" json:"-"`

	Date      time.Time `gorm:"column:date;autoCreateTime" json:"date"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IntentID returns the payment intent id or "".
func (o *Order) IntentID() string {
	if o.PaymentIntentID == nil {
		return ""
	}
	return *o.PaymentIntentID
}
