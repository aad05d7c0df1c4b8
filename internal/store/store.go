package store

import (
	"database/sql"

	"github.com/safar/storefront/internal/discount"
	"github.com/safar/storefront/internal/pricing"
)

// Store is the PostgreSQL-backed catalog, order and user repository.
type Store struct {
	db     *sql.DB
	clock  discount.Clock
	policy pricing.Policy
}

func New(db *sql.DB, clock discount.Clock, policy pricing.Policy) *Store {
	return &Store{db: db, clock: clock, policy: policy}
}

type rowScanner interface {
	Scan(dest ...any) error
}
