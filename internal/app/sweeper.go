package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/x1unix/thoughtly-ticket-booking/internal/clock"
	"github.com/x1unix/thoughtly-ticket-booking/internal/metrics"
)

type SweepRepository interface {
	ExpireDue(ctx context.Context, now time.Time, batchSize int) (int, error)
}

const (
	defaultSweepInterval  = 5 * time.Second
	defaultSweepBatchSize = 500
)

// Sweeper periodically flips overdue pending reservations to expired.
// Expiry is already observable lazily through effective-status reads; the
// sweeper bounds how long the stale rows linger in the pending state.
type Sweeper struct {
	repo      SweepRepository
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
	interval  time.Duration
	batchSize int
}

type SweeperOption func(*Sweeper)

func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithSweepBatchSize(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func NewSweeper(repo SweepRepository, clk clock.Clock, m *metrics.Metrics, logger *zap.SugaredLogger, opts ...SweeperOption) *Sweeper {
	sw := &Sweeper{
		repo:      repo,
		clock:     clk,
		metrics:   m,
		logger:    logger,
		interval:  defaultSweepInterval,
		batchSize: defaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Errorw("sweep pass failed", "error", err)
			}
		}
	}
}

// SweepOnce expires overdue reservations in batches until none remain.
// Batches keep each transaction short; SKIP LOCKED on the repository side
// means a reservation mid-settlement is simply picked up next pass.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	total := 0
	for {
		n, err := s.repo.ExpireDue(ctx, s.clock.Now(), s.batchSize)
		if err != nil {
			return err
		}
		total += n
		if n < s.batchSize {
			break
		}
	}

	s.metrics.SweepPasses.Inc()
	if total > 0 {
		s.metrics.ReservationsExpired.Add(float64(total))
		s.logger.Infow("expired overdue reservations", "count", total)
	}
	return nil
}
