package pending

import (
	"context"
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/observability"
	"go.uber.org/zap"
)

// DefaultSweepInterval is how often the sweeper scans the store.
const DefaultSweepInterval = 30 * time.Second

// Sweeper periodically purges expired entries from a Store.
// Lazy expiry on every action still applies; the sweeper only bounds memory.
type Sweeper struct {
	store    *Store
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. A nil clock uses time.Now.
func NewSweeper(store *Store, ttl, interval time.Duration, now func() time.Time, metrics *observability.Metrics, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		now:      now,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run sweeps every interval until ctx is cancelled. It always returns nil,
// so it can run inside an errgroup next to the HTTP server.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("pending sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("ttl", s.ttl),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("pending sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs a single sweep and returns the number of purged entries.
func (s *Sweeper) SweepOnce() int {
	n := s.store.SweepExpired(s.now(), s.ttl)
	if n > 0 {
		s.metrics.IncrExpired(observability.ExpirySweep, n)
		s.logger.Debug("expired pending confirmations swept", zap.Int("count", n))
	}
	return n
}
