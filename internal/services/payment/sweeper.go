package payment

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs SweepExpired on an interval until its context ends.
type Sweeper struct {
	svc      Service
	interval time.Duration
	clock    func() time.Time
	logger   *zap.Logger
}

func NewSweeper(svc Service, interval time.Duration, clock func() time.Time, logger *zap.Logger) *Sweeper {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{svc: svc, interval: interval, clock: clock, logger: logger.Named("sweeper")}
}

// Run blocks until ctx is done. Sweep errors are logged and do not stop the loop.
func (sw *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("sweeper started", zap.Duration("interval", sw.interval))
	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			sw.Once(ctx)
		}
	}
}

// Once runs a single sweep and returns how many transactions expired.
func (sw *Sweeper) Once(ctx context.Context) int {
	n, err := sw.svc.SweepExpired(ctx, sw.clock())
	if err != nil {
		sw.logger.Error("sweep failed", zap.Int("expired", n), zap.Error(err))
	}
	return n
}
