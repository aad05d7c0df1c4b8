package cart

import (
	"context"
	"time"

	"github.com/safar/storefront/internal/discount"
	"go.uber.org/zap"
)

// Reconcile zeroes the discount of every line whose expiry is at or before
// now. It reports whether any line changed; the input is not modified.
func Reconcile(lines []Line, now int64) ([]Line, bool) {
	var out []Line
	for i, l := range lines {
		if l.DiscountPercent == 0 || !discount.IsExpired(l.DiscountExpiry, now) {
			continue
		}
		if out == nil {
			out = make([]Line, len(lines))
			copy(out, lines)
		}
		out[i].DiscountPercent = 0
		out[i].DiscountExpiry = 0
	}
	if out == nil {
		return lines, false
	}
	return out, true
}

// Reconciler periodically decays expired discounts in a cart container.
type Reconciler struct {
	container *Container
	clock     discount.Clock
	interval  time.Duration
	logger    *zap.Logger
}

func NewReconciler(container *Container, clock discount.Clock, interval time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		container: container,
		clock:     clock,
		interval:  interval,
		logger:    logger.Named("reconciler"),
	}
}

// Pass runs one reconciliation and reports whether the cart changed.
func (r *Reconciler) Pass() bool {
	now := r.clock.Now().Unix()
	changed := r.container.update(func(lines []Line) ([]Line, bool) {
		return Reconcile(lines, now)
	})
	if changed {
		r.logger.Debug("expired cart discounts cleared")
	}
	return changed
}

// Run calls Pass every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Pass()
		}
	}
}
