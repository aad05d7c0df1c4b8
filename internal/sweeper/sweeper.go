// Package sweeper clears lapsed catalog discounts in the background.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Resetter zeroes every expired discount descriptor and reports how many
// items changed. Implementations must be idempotent.
type Resetter interface {
	ResetExpiredDiscounts(ctx context.Context) (int64, error)
}

type Sweeper struct {
	resetter Resetter
	interval time.Duration
	logger   *zap.Logger
}

func New(resetter Resetter, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		resetter: resetter,
		interval: interval,
		logger:   logger.Named("sweeper"),
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("discount sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discount sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one reset. Failures are logged and swallowed so a caller
// on the request path can always continue with its read.
func (s *Sweeper) Sweep(ctx context.Context) {
	n, err := s.resetter.ResetExpiredDiscounts(ctx)
	if err != nil {
		s.logger.Error("reset expired discounts", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired discounts reset", zap.Int64("items", n))
	}
}
