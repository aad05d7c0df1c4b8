// Package cart is the client-held shopping cart: a pure reducer over cart
// actions, an injectable container that persists every committed state, and
// a reconciler that decays expired discounts locally.
package cart

import (
	"encoding/json"
	"strconv"

	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/pricing"
	"github.com/shopspring/decimal"
)

// Line is a snapshot of a catalog item taken when it was added to the cart,
// plus the chosen quantity. It is deliberately not kept in sync with the
// live item: price and discount stay as captured, and only the discount is
// decayed locally once its expiry passes.
type Line struct {
	ItemID          int64           `json:"item_id"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Image           string          `json:"image"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent int             `json:"discount"`
	DiscountExpiry  int64           `json:"discount_expiry"`
	CountInStock    int             `json:"count_in_stock"`
	Quantity        int             `json:"quantity"`
}

// LineFromItem captures the display fields of item into a new line.
func LineFromItem(item models.Item, quantity int) Line {
	return Line{
		ItemID:          item.ID,
		Name:            item.Name,
		Slug:            item.Slug,
		Image:           item.Image,
		Price:           item.Price,
		DiscountPercent: item.DiscountPercent,
		DiscountExpiry:  item.DiscountExpiry,
		CountInStock:    item.CountInStock,
		Quantity:        quantity,
	}
}

func (l Line) Total() decimal.Decimal {
	return pricing.LineTotal(l.Price, l.Quantity, l.DiscountPercent)
}

func (l Line) pricingLine() pricing.Line {
	return pricing.Line{UnitPrice: l.Price, Quantity: l.Quantity, DiscountPercent: l.DiscountPercent}
}

// UnmarshalJSON reads a persisted line. A missing or malformed discount or
// expiry decodes as "no discount" instead of failing the whole cart.
func (l *Line) UnmarshalJSON(data []byte) error {
	type plain Line
	var raw struct {
		plain
		DiscountPercent json.RawMessage `json:"discount"`
		DiscountExpiry  json.RawMessage `json:"discount_expiry"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = Line(raw.plain)
	l.DiscountPercent = int(lenientInt(raw.DiscountPercent))
	l.DiscountExpiry = lenientInt(raw.DiscountExpiry)
	if l.DiscountPercent < 0 || l.DiscountPercent > 100 || l.DiscountExpiry < 0 {
		l.DiscountPercent, l.DiscountExpiry = 0, 0
	}
	return nil
}

func lenientInt(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0
		}
		n = json.Number(s)
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(n.String(), 64); err == nil {
		return int64(f)
	}
	return 0
}
