package loadgen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/fanspend/pkg/logger"
)

// Run executes the complete simulation.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("loadgen")

	log.Info(ctx, "starting fanspend simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("username", cfg.Username),
		logger.Int("transactions", cfg.Transactions),
		logger.Int("batchSize", cfg.BatchSize),
		logger.Int("workers", cfg.Workers))

	client := NewClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, err
	}

	// Step 2: Register or log in the demo user
	created, err := client.EnsureUser(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return stats, err
	}
	log.Info(ctx, "demo user ready", logger.String("username", cfg.Username), logger.Bool("created", created))

	baseline, err := storedTransactions(ctx, client)
	if err != nil {
		return stats, err
	}

	// Step 3: Generate and submit rows
	rows := NewGenerator(cfg.Seed, cfg.Days).Generate(cfg.Transactions)
	stats.Generated = len(rows)
	if err := submit(ctx, client, cfg, Batches(rows, cfg.BatchSize), stats); err != nil {
		return stats, err
	}

	// Step 4: Wait for the workers to persist and rescore
	live, err := settle(ctx, client, cfg, baseline+int64(stats.Accepted))
	if err != nil {
		return stats, err
	}

	// Step 5: Verify results
	if err := Verify(live); err != nil {
		return stats, err
	}

	stats.Scored = len(live.Transactions)
	stats.Total = live.Summary.Total
	stats.ByLeague = live.Summary.ByLeague
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// submit posts batches with at most cfg.Workers requests in flight. A
// failed batch is counted, not fatal.
func submit(ctx context.Context, client *Client, cfg Config, batches [][]Row, stats *Stats) error {
	log := logger.Named("loadgen")
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i, batch := range batches {
		g.Go(func() error {
			ack, err := client.Submit(gctx, batch)
			mu.Lock()
			defer mu.Unlock()
			stats.Batches++
			if err != nil {
				stats.Failed += len(batch)
				log.Warn(gctx, "batch failed", logger.Int("batch", i), logger.Error(err))
				return nil
			}
			stats.Accepted += ack.Accepted
			stats.Duplicates += ack.Duplicates
			if cfg.Verbose {
				log.Debug(gctx, "batch submitted", logger.Int("batch", i), logger.Int("accepted", ack.Accepted))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	log.Info(ctx, "submission completed",
		logger.Int("batches", stats.Batches),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("failed", stats.Failed))
	return nil
}

// settle polls until the server stores at least want rows, the ingest
// queue is empty and the ledger agrees with the live view.
func settle(ctx context.Context, client *Client, cfg Config, want int64) (FanSpend, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Settle)
	defer cancel()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		live, err := settled(ctx, client, want)
		if err == nil {
			return live, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return FanSpend{}, fmt.Errorf("%w: %w", ErrNotSettled, lastErr)
		case <-ticker.C:
		}
	}
}

func settled(ctx context.Context, client *Client, want int64) (FanSpend, error) {
	stats, err := client.Stats(ctx)
	if err != nil {
		return FanSpend{}, err
	}
	if n := number(stats["transactions"]); n < want {
		return FanSpend{}, fmt.Errorf("%d of %d rows stored", n, want)
	}
	if q := number(stats["queueLength"]); q > 0 {
		return FanSpend{}, fmt.Errorf("%d jobs queued", q)
	}

	live, err := client.FanSpend(ctx)
	if err != nil {
		return FanSpend{}, err
	}
	ledger, err := client.Points(ctx)
	if err != nil {
		return FanSpend{}, err
	}
	if err := VerifyLedger(live, ledger); err != nil {
		return FanSpend{}, err
	}
	return live, nil
}

func storedTransactions(ctx context.Context, client *Client) (int64, error) {
	stats, err := client.Stats(ctx)
	if err != nil {
		return 0, fmt.Errorf("stats: %w", err)
	}
	return number(stats["transactions"]), nil
}

// number reads a JSON number decoded into any.
func number(v any) int64 {
	f, _ := v.(float64)
	return int64(f)
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var rowsPerSecond float64
	if stats.Duration > 0 {
		rowsPerSecond = float64(stats.Accepted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("failed", stats.Failed),
		logger.Int("scored", stats.Scored),
		logger.Int64("totalPoints", stats.Total),
		logger.Any("byLeague", stats.ByLeague),
		logger.Duration("duration", stats.Duration),
		logger.Float64("rowsPerSecond", rowsPerSecond))
}
