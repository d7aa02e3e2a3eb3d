// Command simulate posts synthetic aggregator rows for a demo user to a
// running fanspend server and checks that the points add up.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/fanspend/internal/loadgen"
	"github.com/okian/fanspend/pkg/logger"
)

const runTimeout = 10 * time.Minute

func main() {
	cfg := loadgen.DefaultConfig()
	flag.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Base URL of the service")
	flag.StringVar(&cfg.Username, "user", cfg.Username, "Demo username, registered if missing")
	flag.StringVar(&cfg.Password, "password", cfg.Password, "Demo password")
	flag.IntVar(&cfg.Transactions, "transactions", cfg.Transactions, "Number of rows to generate")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Rows per request")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent requests")
	flag.IntVar(&cfg.Days, "days", cfg.Days, "Spread of transaction dates in days")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Generator seed, 0 for random")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	flag.DurationVar(&cfg.Settle, "settle", cfg.Settle, "How long to wait for the ledger to catch up")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Log every batch")
	logFormat := flag.String("log-format", logger.FormatText, "text or json")
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if cfg.Verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	_, err := loadgen.Run(ctx, cfg)
	cancel()
	stop()
	if err != nil {
		logger.Get().Error(context.Background(), "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}
