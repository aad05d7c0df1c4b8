package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

const uniqueViolation = "23505"

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case uniqueViolation, "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

// IsRetryable reports whether a fresh transaction may succeed where err
// failed.
func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a unique constraint failure on
// the named constraint. An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// Error classes surfaced to the serving boundary.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

var (
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)
	ErrItemNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)

	ErrDuplicateSlug         = fmt.Errorf("%w: slug is already in use", ErrConflict)
	ErrDuplicateEmail        = fmt.Errorf("%w: this email has been registered", ErrConflict)
	ErrOrderAlreadyPaid      = fmt.Errorf("%w: order is already paid", ErrConflict)
	ErrOrderNotPaid          = fmt.Errorf("%w: order is not paid", ErrConflict)
	ErrOrderAlreadyDelivered = fmt.Errorf("%w: order is already delivered", ErrConflict)

	ErrEmptyOrder      = fmt.Errorf("%w: order has no items", ErrInvalidInput)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	ErrInvalidDiscount = fmt.Errorf("%w: discount must be 0-100 with a future expiry", ErrInvalidInput)
	ErrInvalidPrice    = fmt.Errorf("%w: price and stock must not be negative", ErrInvalidInput)
	ErrInvalidPage     = fmt.Errorf("%w: page is out of range", ErrInvalidInput)
)

// InsufficientStockError names the line whose requested quantity exceeds
// the live stock count.
type InsufficientStockError struct {
	ItemID    int64
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
