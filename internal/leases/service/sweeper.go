// Package service implements background processing for lease management.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/sealbox/sealbox/internal/leases/usecase"
)

// Sweeper periodically flips overdue active leases to expired. Each run drains
// the backlog in bounded batches, paced by a rate limiter so a large backlog
// cannot monopolize the database.
type Sweeper struct {
	leases    usecase.LeaseUseCase
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	limiter   *rate.Limiter

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewSweeper creates a new lease expiration sweeper. batchesPerSec bounds how
// many expiry batches may hit the database per second.
func NewSweeper(
	leases usecase.LeaseUseCase,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
	batchesPerSec float64,
) *Sweeper {
	return &Sweeper{
		leases:    leases,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Limit(batchesPerSec), 1),
	}
}

// Start schedules the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.sweep(ctx)
	}); err != nil {
		cancel()
		return err
	}
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.logger.Info("lease sweeper started",
		slog.Duration("interval", s.interval),
		slog.Int("batch_size", s.batchSize),
	)
	return nil
}

// Stop halts scheduling, interrupts an in-flight sweep, and waits for it to
// finish. Safe to call on a stopped sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.logger.Info("lease sweeper stopped")
}

// sweep drains overdue leases in batches until a batch comes back short.
func (s *Sweeper) sweep(ctx context.Context) {
	var total int64
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		expired, err := s.leases.ExpireDue(ctx, s.batchSize)
		if err != nil {
			s.logger.Error("lease sweep failed",
				slog.String("error", err.Error()),
				slog.Int64("expired", total),
			)
			return
		}
		total += expired

		// A short batch means the backlog is drained.
		if expired < int64(s.batchSize) {
			break
		}
	}

	if total > 0 {
		s.logger.Info("lease sweep completed", slog.Int64("expired", total))
	}
}
