// Package service wires storage, the scoring pipeline, the ingest queue and
// the refresh scheduler into the operations the HTTP API exposes.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/okian/fanspend/internal/adapters/mq/queue"
	"github.com/okian/fanspend/internal/adapters/mq/worker"
	"github.com/okian/fanspend/internal/adapters/repository"
	"github.com/okian/fanspend/internal/auth"
	"github.com/okian/fanspend/internal/domain/dedupe"
	"github.com/okian/fanspend/internal/domain/pipeline"
	"github.com/okian/fanspend/internal/domain/sponsor"
	"github.com/okian/fanspend/internal/scheduler"
	"github.com/okian/fanspend/pkg/logger"
)

const secretBytes = 32

// Service implements the API dependencies for fan-spend scoring.
type Service struct {
	mu sync.RWMutex

	userLocks sync.Map // user id -> *sync.Mutex serializing ledger rewrites

	store       repository.Store
	pipeline    *pipeline.Pipeline
	sponsorOpts []sponsor.Option
	issuer      *auth.Issuer

	deduper    dedupe.Deduper
	ingest     *queue.InMemoryQueue
	workerPool *worker.Pool
	scheduler  *scheduler.Scheduler

	workerCount int
	queueSize   int
	dedupeSize  int
	bcryptCost  int
	refreshCron string

	started bool
	logger  logger.Logger
}

// New constructs a Service over store. Start must be called before Ingest.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		pipeline:    pipeline.New(),
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  500_000,
		bcryptCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.issuer == nil {
		s.issuer = ephemeralIssuer()
		s.logger.Warn(context.Background(), "no token secret configured, sessions will not survive a restart")
	}
	return s
}

func ephemeralIssuer() *auth.Issuer {
	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		panic(fmt.Sprintf("read random secret: %v", err))
	}
	issuer, err := auth.NewIssuer(secret)
	if err != nil {
		panic(err)
	}
	return issuer
}

// Start creates the ingest queue, starts the worker pool and, when a cron
// expression is configured, the refresh scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.ingest = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.workerPool = worker.NewPool(s.workerCount, s.ingest, worker.ProcessorFunc(s.Process))
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.scheduler = scheduler.New(s)
	switch err := s.scheduler.Register(s.refreshCron); {
	case err == nil:
		s.scheduler.Start()
	case errors.Is(err, scheduler.ErrDisabled):
		s.logger.Info(ctx, "scheduled refresh disabled")
	default:
		_ = s.workerPool.Shutdown(ctx)
		return fmt.Errorf("start scheduler: %w", err)
	}

	s.started = true
	s.logger.Info(ctx, "fanspend service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("refreshCron", s.refreshCron),
	)
	return nil
}

// Stop halts the scheduler and drains already accepted ingest jobs. The
// store is owned by the caller and left open.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	sched, pool := s.scheduler, s.workerPool
	s.mu.Unlock()

	// Workers take the read lock while draining, so shut them down unlocked.
	s.logger.Info(ctx, "stopping fanspend service...")
	var errs []error
	if err := sched.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info(ctx, "fanspend service stopped")
	return errors.Join(errs...)
}

// Started reports whether Start has completed.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"formula":     s.pipeline.Formula(),
	}

	if s.started {
		stats["queueLength"] = s.ingest.Len(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		if next := s.scheduler.Next(); !next.IsZero() {
			stats["nextRefresh"] = next.UTC().Format(time.RFC3339)
		}
	}

	if counts, err := s.store.Counts(ctx); err == nil {
		stats["users"] = counts.Users
		stats["sponsors"] = counts.Sponsors
		stats["transactions"] = counts.Transactions
		stats["ledgerRows"] = counts.LedgerRows
	} else {
		s.logger.Warn(ctx, "store counts unavailable", logger.Error(err))
	}
	return stats
}
