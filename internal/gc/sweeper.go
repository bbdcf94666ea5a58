// Package gc periodically removes course media whose upload failed or never completed
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OrphanSweeper is the interface that wraps the orphan cleanup operation
type OrphanSweeper interface {
	// Method SweepOrphans deletes course media that failed, or stayed pending since before "cutoff".
	//
	// Returns the number of removed records. Failures on single records are joined into the error.
	SweepOrphans(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper runs the orphan cleanup on a cron schedule
type Sweeper struct {
	target     OrphanSweeper
	cron       *cron.Cron
	pendingTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	started bool
}

// NewSweeper creates a sweeper. schedule accepts standard cron expressions and descriptors such as "@every 10m".
func NewSweeper(target OrphanSweeper, schedule string, pendingTTL time.Duration, logger *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		target:     target,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		pendingTTL: pendingTTL,
		logger:     logger,
		now:        time.Now,
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the schedule and stops it when ctx is done
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop stops the schedule and waits for a running sweep to finish. Safe to call multiple times.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}

// RunOnce sweeps records older than the pending TTL and returns how many were removed
func (s *Sweeper) RunOnce(ctx context.Context) int {
	cutoff := s.now().UTC().Add(-s.pendingTTL)
	removed, err := s.target.SweepOrphans(ctx, cutoff)
	if err != nil {
		s.logger.Warn("orphan sweep finished with errors", zap.Error(err), zap.Int("removed", removed))
		return removed
	}
	s.logger.Debug("orphan sweep finished", zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	return removed
}
