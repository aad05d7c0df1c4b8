package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/discount"
	"github.com/safar/storefront/internal/models"
)

const itemColumns = `id, slug, name, category, brand, image, description, price, count_in_stock,
	rating, num_reviews, discount, discount_expiry, sold, created_at, updated_at, version`

const slugConstraint = "items_slug_key"

func scanItem(row rowScanner, item *models.Item) error {
	return row.Scan(
		&item.ID,
		&item.Slug,
		&item.Name,
		&item.Category,
		&item.Brand,
		&item.Image,
		&item.Description,
		&item.Price,
		&item.CountInStock,
		&item.Rating,
		&item.NumReviews,
		&item.DiscountPercent,
		&item.DiscountExpiry,
		&item.Sold,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.Version,
	)
}

func scanItems(rows *sql.Rows) ([]models.Item, error) {
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

// validateItem enforces the stored discount invariant: a nonzero percent
// carries a future expiry, and a zero percent carries no expiry.
func (s *Store) validateItem(item *models.Item) error {
	if item.Price.IsNegative() || item.CountInStock < 0 {
		return database.ErrInvalidPrice
	}
	if item.DiscountPercent < 0 || item.DiscountPercent > 100 {
		return database.ErrInvalidDiscount
	}
	if item.DiscountPercent == 0 {
		item.DiscountExpiry = 0
		return nil
	}
	if discount.IsExpired(item.DiscountExpiry, s.clock.Now().Unix()) {
		return database.ErrInvalidDiscount
	}
	return nil
}

func (s *Store) CreateItem(ctx context.Context, in models.Item) (*models.Item, error) {
	if err := s.validateItem(&in); err != nil {
		return nil, err
	}

	item := &models.Item{}
	query := `
		INSERT INTO items (slug, name, category, brand, image, description, price, count_in_stock,
			rating, num_reviews, discount, discount_expiry, sold, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, NOW(), NOW(), 1)
		RETURNING ` + itemColumns

	err := scanItem(s.db.QueryRowContext(ctx, query,
		in.Slug, in.Name, in.Category, in.Brand, in.Image, in.Description, in.Price, in.CountInStock,
		in.Rating, in.NumReviews, in.DiscountPercent, in.DiscountExpiry,
	), item)
	if err != nil {
		if database.IsUniqueViolation(err, slugConstraint) {
			return nil, database.ErrDuplicateSlug
		}
		return nil, fmt.Errorf("create item: %w", err)
	}

	return item, nil
}

func (s *Store) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return s.getItemWhere(ctx, s.db, "id = $1", id)
}

func (s *Store) GetItemBySlug(ctx context.Context, slug string) (*models.Item, error) {
	return s.getItemWhere(ctx, s.db, "slug = $1", slug)
}

func (s *Store) getItemWhere(ctx context.Context, q database.Querier, where string, arg any) (*models.Item, error) {
	item := &models.Item{}
	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + where

	if err := scanItem(q.QueryRowContext(ctx, query, arg), item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *Store) CountItems(ctx context.Context, filter ItemFilter) (int64, error) {
	where, args := filter.where()

	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE `+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return total, nil
}

// FindItems returns one page of items matching filter, skipping
// pageSize*(page-1) rows.
func (s *Store) FindItems(ctx context.Context, filter ItemFilter, sort SortOrder, page, pageSize int) (*OffsetPage[models.Item], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("%w: page size must be at least 1", database.ErrInvalidInput)
	}
	offset, err := Offset(page, pageSize)
	if err != nil {
		return nil, err
	}

	total, err := s.CountItems(ctx, filter)
	if err != nil {
		return nil, err
	}

	where, args := filter.where()
	query := fmt.Sprintf(`
		SELECT %s
		FROM items
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		itemColumns, where, sort.orderBy(), len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}

	return newOffsetPage(items, total, page, pageSize), nil
}

// ListDiscounted returns items with a nonzero discount, largest first.
func (s *Store) ListDiscounted(ctx context.Context) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE discount > 0
		ORDER BY discount DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list discounted items: %w", err)
	}
	return scanItems(rows)
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category
		FROM items
		WHERE category <> ''
		ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return categories, nil
}

func (s *Store) UpdateItem(ctx context.Context, id int64, patch models.ItemPatch) (*models.Item, error) {
	var updated *models.Item

	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		item, err := s.getItemWhere(ctx, tx, "id = $1 FOR UPDATE", id)
		if err != nil {
			return err
		}

		applyPatch(item, patch)
		if patch.DiscountPercent == nil && patch.DiscountExpiry == nil &&
			!discount.Active(item.DiscountPercent, item.DiscountExpiry, s.clock.Now().Unix()) {
			// Lapsed but not yet swept; an unrelated edit must not fail on it.
			item.DiscountPercent, item.DiscountExpiry = 0, 0
		}
		if err := s.validateItem(item); err != nil {
			return err
		}

		updated = &models.Item{}
		err = scanItem(tx.QueryRowContext(ctx, `
			UPDATE items
			SET slug = $1, name = $2, category = $3, brand = $4, image = $5, description = $6,
			    price = $7, count_in_stock = $8, discount = $9, discount_expiry = $10,
			    updated_at = NOW(), version = version + 1
			WHERE id = $11
			RETURNING `+itemColumns,
			item.Slug, item.Name, item.Category, item.Brand, item.Image, item.Description,
			item.Price, item.CountInStock, item.DiscountPercent, item.DiscountExpiry, id,
		), updated)
		if err != nil {
			if database.IsUniqueViolation(err, slugConstraint) {
				return database.ErrDuplicateSlug
			}
			return fmt.Errorf("update item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func applyPatch(item *models.Item, p models.ItemPatch) {
	if p.Slug != nil {
		item.Slug = *p.Slug
	}
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Brand != nil {
		item.Brand = *p.Brand
	}
	if p.Image != nil {
		item.Image = *p.Image
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.CountInStock != nil {
		item.CountInStock = *p.CountInStock
	}
	if p.DiscountPercent != nil {
		item.DiscountPercent = *p.DiscountPercent
	}
	if p.DiscountExpiry != nil {
		item.DiscountExpiry = *p.DiscountExpiry
	}
}

// DeleteItem removes a catalog item. Order lines keep their own copy of the
// item fields, so placed orders are unaffected.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrItemNotFound
	}
	return nil
}

// ResetExpiredDiscounts zeroes the discount descriptor of every item whose
// discount has expired and returns how many items changed. Each row is
// updated atomically, so concurrent calls are safe and repeat calls are
// no-ops. An expiry of 0 with a nonzero percent counts as expired.
func (s *Store) ResetExpiredDiscounts(ctx context.Context) (int64, error) {
	now := s.clock.Now().Unix()

	result, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET discount = 0,
		    discount_expiry = 0,
		    updated_at = NOW(),
		    version = version + 1
		WHERE discount <> 0
		  AND discount_expiry <= $1`,
		now)
	if err != nil {
		return 0, fmt.Errorf("reset expired discounts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected, nil
}
