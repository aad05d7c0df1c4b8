// Package pricing computes line, cart and order amounts. The same functions
// back catalog display, cart display and the totals frozen into an order.
package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineTotal returns unitPrice * quantity * (1 - discountPercent/100).
func LineTotal(unitPrice decimal.Decimal, quantity, discountPercent int) decimal.Decimal {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	if discountPercent <= 0 {
		return gross
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(clampPercent(discountPercent)))).Div(hundred)
	return gross.Mul(factor)
}

// DiscountedUnitPrice is LineTotal for a single unit.
func DiscountedUnitPrice(unitPrice decimal.Decimal, discountPercent int) decimal.Decimal {
	return LineTotal(unitPrice, 1, discountPercent)
}

type Line struct {
	UnitPrice       decimal.Decimal
	Quantity        int
	DiscountPercent int
}

func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(LineTotal(l.UnitPrice, l.Quantity, l.DiscountPercent))
	}
	return total
}

// Policy holds the checkout charges applied on top of the items price.
type Policy struct {
	ShippingPrice         decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	TaxRate               decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		ShippingPrice:         decimal.NewFromInt(10),
		FreeShippingThreshold: decimal.NewFromInt(100),
		TaxRate:               decimal.RequireFromString("0.15"),
	}
}

type Totals struct {
	ItemsPrice    decimal.Decimal `json:"items_price"`
	ShippingPrice decimal.Decimal `json:"shipping_price"`
	TaxPrice      decimal.Decimal `json:"tax_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

// Quote prices a set of lines under p. Shipping is waived when the items
// price exceeds the threshold; tax is rounded to cents.
func Quote(lines []Line, p Policy) Totals {
	items := Subtotal(lines)

	shipping := p.ShippingPrice
	if len(lines) == 0 || items.GreaterThan(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := items.Mul(p.TaxRate).Round(2)

	return Totals{
		ItemsPrice:    items,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    items.Add(shipping).Add(tax),
	}
}

func clampPercent(p int) int {
	if p > 100 {
		return 100
	}
	return p
}
