package models

import (
	"time"

	"github.com/safar/storefront/internal/database"
)

// CapturePayment records a successful payment. Paid is monotonic: capturing
// an order that is already paid is rejected so the original paid_at and
// confirmation payload are never overwritten.
func (o *Order) CapturePayment(result PaymentResult, now time.Time) error {
	if o.IsPaid {
		return database.ErrOrderAlreadyPaid
	}
	o.IsPaid = true
	o.PaidAt = &now
	o.PaymentResult = &result
	return nil
}

// MarkDelivered requires a captured payment.
func (o *Order) MarkDelivered(now time.Time) error {
	if !o.IsPaid {
		return database.ErrOrderNotPaid
	}
	if o.IsDelivered {
		return database.ErrOrderAlreadyDelivered
	}
	o.IsDelivered = true
	o.DeliveredAt = &now
	return nil
}

// OwnedBy reports whether the order belongs to userID.
func (o *Order) OwnedBy(userID int64) bool {
	return o.UserID == userID
}
