package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/pricing"
	"github.com/shopspring/decimal"
)

type PlaceOrderRequest struct {
	UserID          int64
	Items           []OrderLine
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
}

// OrderLine is a cart line as submitted at checkout. Its price and discount
// are frozen into the order as given; only stock is re-read from the
// catalog.
type OrderLine struct {
	ItemID          int64
	Name            string
	Slug            string
	Image           string
	UnitPrice       decimal.Decimal
	DiscountPercent int
	Quantity        int
}

func (l OrderLine) pricingLine() pricing.Line {
	return pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity, DiscountPercent: l.DiscountPercent}
}

const orderColumns = `id, user_id, order_number, shipping_address, payment_method, payment_result,
	items_price, shipping_price, tax_price, total_price, is_paid, paid_at, is_delivered, delivered_at,
	created_at, updated_at, version`

func scanOrder(row rowScanner, order *models.Order) error {
	var (
		address     []byte
		payment     []byte
		paidAt      sql.NullTime
		deliveredAt sql.NullTime
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&address,
		&order.PaymentMethod,
		&payment,
		&order.ItemsPrice,
		&order.ShippingPrice,
		&order.TaxPrice,
		&order.TotalPrice,
		&order.IsPaid,
		&paidAt,
		&order.IsDelivered,
		&deliveredAt,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return err
	}

	if len(address) > 0 {
		if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
			return fmt.Errorf("decode shipping address: %w", err)
		}
	}
	if len(payment) > 0 {
		order.PaymentResult = &models.PaymentResult{}
		if err := json.Unmarshal(payment, order.PaymentResult); err != nil {
			return fmt.Errorf("decode payment result: %w", err)
		}
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = &deliveredAt.Time
	}
	return nil
}

func generateOrderNumber() string {
	return "ORD-" + uuid.NewString()
}

func validateLines(lines []OrderLine) (map[int64]int, error) {
	if len(lines) == 0 {
		return nil, database.ErrEmptyOrder
	}
	requested := make(map[int64]int, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, database.ErrInvalidQuantity
		}
		if l.UnitPrice.IsNegative() || l.DiscountPercent < 0 || l.DiscountPercent > 100 {
			return nil, database.ErrInvalidPrice
		}
		requested[l.ItemID] += l.Quantity
	}
	return requested, nil
}

// PlaceOrder snapshots the submitted lines into a new order. Every line's
// stock is re-checked against the live catalog under row locks; any
// shortfall aborts the whole placement with *database.InsufficientStockError
// and nothing is written.
func (s *Store) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	requested, err := validateLines(req.Items)
	if err != nil {
		return nil, err
	}

	pricingLines := make([]pricing.Line, len(req.Items))
	for i, l := range req.Items {
		pricingLines[i] = l.pricingLine()
	}
	totals := pricing.Quote(pricingLines, s.policy)

	address, err := json.Marshal(req.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("encode shipping address: %w", err)
	}

	var order *models.Order

	err = database.WithRetry(ctx, s.db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
			req.UserID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return database.ErrUserNotFound
		}

		for _, l := range req.Items {
			if err := s.checkStock(ctx, tx, l.ItemID, requested[l.ItemID]); err != nil {
				return err
			}
		}

		var orderID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_number, shipping_address, payment_method,
				items_price, shipping_price, tax_price, total_price, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), 1)
			 RETURNING id`,
			req.UserID, generateOrderNumber(), string(address), req.PaymentMethod,
			totals.ItemsPrice, totals.ShippingPrice, totals.TaxPrice, totals.TotalPrice).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, l := range req.Items {
			subtotal := pricing.LineTotal(l.UnitPrice, l.Quantity, l.DiscountPercent)
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, item_id, name, slug, image, quantity, unit_price, discount, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
				orderID, l.ItemID, l.Name, l.Slug, l.Image, l.Quantity, l.UnitPrice, l.DiscountPercent, subtotal)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		for _, l := range req.Items {
			if err := decrementStock(ctx, tx, l.ItemID, l.Quantity); err != nil {
				return err
			}
		}

		order, err = getOrder(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("fetch created order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// checkStock locks the item row and compares its live stock against qty.
func (s *Store) checkStock(ctx context.Context, tx *sql.Tx, itemID int64, qty int) error {
	item, err := s.getItemWhere(ctx, tx, "id = $1 FOR UPDATE", itemID)
	if err != nil {
		return err
	}
	if item.CountInStock < qty {
		return &database.InsufficientStockError{
			ItemID:    item.ID,
			Name:      item.Name,
			Requested: qty,
			Available: item.CountInStock,
		}
	}
	return nil
}

func decrementStock(ctx context.Context, tx *sql.Tx, itemID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE items
		 SET count_in_stock = count_in_stock - $1,
		     sold = sold + $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2
		   AND count_in_stock >= $1`,
		quantity, itemID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return getOrder(ctx, s.db, id)
}

func getOrder(ctx context.Context, q database.Querier, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, item_id, name, slug, image, quantity, unit_price, discount, subtotal, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ItemID,
			&item.Name,
			&item.Slug,
			&item.Image,
			&item.Quantity,
			&item.UnitPrice,
			&item.DiscountPercent,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return order, nil
}

// ListOrdersCursor pages through a user's orders, newest first.
func (s *Store) ListOrdersCursor(ctx context.Context, userID int64, cursor string, limit int) (*CursorPage[models.Order], error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: decode cursor: %v", database.ErrInvalidInput, err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := s.db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage[models.Order]{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (s *Store) CapturePayment(ctx context.Context, orderID int64, result models.PaymentResult) (*models.Order, error) {
	return s.transitionOrder(ctx, orderID, func(o *models.Order, now time.Time) error {
		return o.CapturePayment(result, now)
	})
}

func (s *Store) MarkDelivered(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.transitionOrder(ctx, orderID, func(o *models.Order, now time.Time) error {
		return o.MarkDelivered(now)
	})
}

// transitionOrder locks the order row, applies a state transition and
// persists the paid/delivered flags.
func (s *Store) transitionOrder(ctx context.Context, orderID int64, apply func(*models.Order, time.Time) error) (*models.Order, error) {
	var order *models.Order

	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		locked := &models.Order{}
		err := scanOrder(tx.QueryRowContext(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID), locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if err := apply(locked, s.clock.Now().UTC()); err != nil {
			return err
		}

		var payment any
		if locked.PaymentResult != nil {
			encoded, err := json.Marshal(locked.PaymentResult)
			if err != nil {
				return fmt.Errorf("encode payment result: %w", err)
			}
			payment = string(encoded)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders
			 SET is_paid = $1, paid_at = $2, payment_result = $3,
			     is_delivered = $4, delivered_at = $5,
			     updated_at = NOW(), version = version + 1
			 WHERE id = $6`,
			locked.IsPaid, locked.PaidAt, payment, locked.IsDelivered, locked.DeliveredAt, orderID)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		order, err = getOrder(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}
