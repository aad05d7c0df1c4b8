package cart

import (
	"context"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/pricing"
)

// StockChecker reads the live catalog entry for an item.
type StockChecker interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
}

// CheckoutRequest is what the cart submits when the user places an order.
type CheckoutRequest struct {
	Items           []Line                 `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req CheckoutRequest) (*models.Order, error)
}

// AddToCart re-reads the item's live stock and adds or updates the line.
// When the stock cannot cover the requested quantity the cart is left
// untouched and an *database.InsufficientStockError is returned.
func AddToCart(ctx context.Context, c *Container, checker StockChecker, line Line) (State, error) {
	if line.Quantity < 1 {
		return c.State(), database.ErrInvalidQuantity
	}

	live, err := checker.GetItem(ctx, line.ItemID)
	if err != nil {
		return c.State(), fmt.Errorf("check stock: %w", err)
	}
	if live.CountInStock < line.Quantity {
		return c.State(), &database.InsufficientStockError{
			ItemID:    line.ItemID,
			Name:      live.Name,
			Requested: line.Quantity,
			Available: live.CountInStock,
		}
	}

	line.CountInStock = live.CountInStock
	return c.Dispatch(AddItem{Line: line}), nil
}

// Checkout places an order for the current cart and empties the cart only
// if the order was accepted.
func Checkout(ctx context.Context, c *Container, placer OrderPlacer) (*models.Order, error) {
	state := c.State()
	if len(state.Lines) == 0 {
		return nil, database.ErrEmptyOrder
	}

	order, err := placer.PlaceOrder(ctx, CheckoutRequest{
		Items:           state.Lines,
		ShippingAddress: state.ShippingAddress,
		PaymentMethod:   state.PaymentMethod,
	})
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	c.Dispatch(Clear{})
	return order, nil
}

// Totals prices the cart with the same policy the server applies.
func Totals(s State, policy pricing.Policy) pricing.Totals {
	lines := make([]pricing.Line, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = l.pricingLine()
	}
	return pricing.Quote(lines, policy)
}

// ItemCount is the number of units across all lines.
func ItemCount(s State) int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}
