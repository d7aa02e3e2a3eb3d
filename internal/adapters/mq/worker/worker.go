// Package worker drains ingest jobs from the queue and hands them to a
// Processor that persists and rescores them.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/fanspend/internal/adapters/mq/queue"
	"github.com/okian/fanspend/pkg/logger"
	"github.com/okian/fanspend/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Processor handles a single ingest job.
type Processor interface {
	Process(ctx context.Context, job queue.IngestJob) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job queue.IngestJob) error

func (f ProcessorFunc) Process(ctx context.Context, job queue.IngestJob) error { return f(ctx, job) }

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.IngestJob
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run processes jobs until the queue closes or Shutdown is called.
	// Cancelling ctx does not stop it.
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker over an in-process channel.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: p,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	// Jobs were already acknowledged to the client; finish them even after
	// the caller's context is gone.
	ctx = context.WithoutCancel(ctx)
	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "ingest job failed",
					logger.String("user_id", job.UserID),
					logger.Int("transactions", len(job.Transactions)),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker after its current job without draining the
// queue. Use Pool.Shutdown to drain.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, job queue.IngestJob) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerLatency(float64(time.Since(start).Milliseconds()))
		if r := recover(); r != nil {
			metrics.RecordWorkerError("panic")
			err = fmt.Errorf("panic processing job for %s: %v", job.UserID, r)
		}
	}()

	if err := w.processor.Process(ctx, job); err != nil {
		metrics.RecordWorkerError("process")
		return fmt.Errorf("process job for %s: %w", job.UserID, err)
	}
	return nil
}

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one picks a
// value from the CPU count.
func NewPool(workerCount int, q Queue, p Processor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, p, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker. Workers outlive ctx and stop only through
// Shutdown.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for workers to drain the jobs that
// were already accepted, bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
