package models

import (
	"errors"
	"testing"
	"time"

	"github.com/safar/storefront/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturePayment(t *testing.T) {
	order := &Order{ID: 1}
	paidAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	err := order.CapturePayment(PaymentResult{ID: "PAY-1", Status: "COMPLETED"}, paidAt)
	require.NoError(t, err)

	assert.True(t, order.IsPaid)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, paidAt, *order.PaidAt)
	assert.Equal(t, "PAY-1", order.PaymentResult.ID)
}

func TestCapturePaymentTwiceIsConflict(t *testing.T) {
	order := &Order{ID: 1}
	first := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, order.CapturePayment(PaymentResult{ID: "PAY-1"}, first))

	err := order.CapturePayment(PaymentResult{ID: "PAY-2"}, first.Add(time.Hour))

	assert.ErrorIs(t, err, database.ErrOrderAlreadyPaid)
	assert.ErrorIs(t, err, database.ErrConflict)
	assert.Equal(t, first, *order.PaidAt)
	assert.Equal(t, "PAY-1", order.PaymentResult.ID)
}

func TestMarkDeliveredRequiresPayment(t *testing.T) {
	order := &Order{ID: 1}

	err := order.MarkDelivered(time.Now())

	assert.True(t, errors.Is(err, database.ErrOrderNotPaid))
	assert.False(t, order.IsDelivered)
	assert.Nil(t, order.DeliveredAt)
}

func TestMarkDelivered(t *testing.T) {
	order := &Order{ID: 1}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, order.CapturePayment(PaymentResult{ID: "PAY-1"}, now))

	require.NoError(t, order.MarkDelivered(now.Add(24*time.Hour)))
	assert.True(t, order.IsDelivered)
	assert.Equal(t, now.Add(24*time.Hour), *order.DeliveredAt)

	err := order.MarkDelivered(now.Add(48 * time.Hour))
	assert.ErrorIs(t, err, database.ErrOrderAlreadyDelivered)
	assert.Equal(t, now.Add(24*time.Hour), *order.DeliveredAt)
}
