package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// UserPatch carries the profile fields a user may change; nil fields are
// left as is. PasswordHash is already hashed.
type UserPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

// Item is a live catalog entry. DiscountExpiry is epoch seconds; 0 means the
// item carries no discount.
type Item struct {
	ID              int64           `json:"id"`
	Slug            string          `json:"slug"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Brand           string          `json:"brand"`
	Image           string          `json:"image"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	CountInStock    int             `json:"count_in_stock"`
	Rating          float64         `json:"rating"`
	NumReviews      int             `json:"num_reviews"`
	DiscountPercent int             `json:"discount"`
	DiscountExpiry  int64           `json:"discount_expiry"`
	Sold            int             `json:"sold"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// ItemPatch carries the admin-editable fields; nil fields are left as is.
type ItemPatch struct {
	Slug            *string
	Name            *string
	Category        *string
	Brand           *string
	Image           *string
	Description     *string
	Price           *decimal.Decimal
	CountInStock    *int
	DiscountPercent *int
	DiscountExpiry  *int64
}

type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// PaymentResult is the confirmation payload returned by the payment provider.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	OrderNumber     string          `json:"order_number"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentResult   *PaymentResult  `json:"payment_result,omitempty"`
	ItemsPrice      decimal.Decimal `json:"items_price"`
	ShippingPrice   decimal.Decimal `json:"shipping_price"`
	TaxPrice        decimal.Decimal `json:"tax_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	IsPaid          bool            `json:"is_paid"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	IsDelivered     bool            `json:"is_delivered"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem is the frozen copy of a cart line. ItemID records provenance
// only; the line is never re-priced from the live item.
type OrderItem struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	ItemID          int64           `json:"item_id"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Image           string          `json:"image"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent int             `json:"discount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	CreatedAt       time.Time       `json:"created_at"`
}
