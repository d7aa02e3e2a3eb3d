// Package scheduler runs periodic ledger refreshes on a cron expression.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/fanspend/pkg/logger"
	"github.com/okian/fanspend/pkg/metrics"
)

// ErrDisabled is returned by Register when no expression is configured.
var ErrDisabled = errors.New("scheduler disabled")

// Refresher rescores every user and reports how many were refreshed.
type Refresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// Scheduler owns the cron runner and the refresh job.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	timeout   time.Duration
	logger    logger.Logger

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTimeout bounds a single refresh run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Scheduler. Expressions use the standard five-field syntax
// plus descriptors such as @hourly.
func New(r Refresher, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:      cron.New(),
		refresher: r,
		timeout:   10 * time.Minute,
		logger:    logger.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the refresh job. An empty spec returns ErrDisabled.
func (s *Scheduler) Register(spec string) error {
	if spec == "" {
		return ErrDisabled
	}
	id, err := s.cron.AddFunc(spec, func() { s.RunNow(context.Background()) })
	if err != nil {
		return fmt.Errorf("register refresh job %q: %w", spec, err)
	}
	s.entry = id
	return nil
}

// Start starts the cron runner.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(context.Background(), "scheduler started")
}

// Stop stops the runner and waits for a running job, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Next returns the next scheduled run, or the zero time when not registered.
func (s *Scheduler) Next() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// RunNow performs one refresh. Overlapping runs are skipped.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn(ctx, "refresh already running, skipping")
		metrics.RecordRefreshRun("skipped", 0)
		return false
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.refresher.RefreshAll(ctx)
	if err != nil {
		metrics.RecordRefreshRun("error", n)
		s.logger.Error(ctx, "refresh failed", logger.Int("users", n), logger.Error(err))
		return true
	}
	metrics.RecordRefreshRun("ok", n)
	s.logger.Info(ctx, "refresh complete",
		logger.Int("users", n),
		logger.Duration("took", time.Since(start)),
	)
	return true
}
