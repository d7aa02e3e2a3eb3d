// Package loadgen drives a running fanspend server with synthetic
// aggregator rows for one demo user and checks the scoring invariants on
// what comes back.
package loadgen

import (
	"runtime"
	"time"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Username     string        // Demo account, registered on first use
	Password     string        // Demo account password
	Transactions int           // Number of rows to generate
	BatchSize    int           // Rows per POST /api/transactions
	Workers      int           // Concurrent submitters
	Timeout      time.Duration // HTTP request timeout
	Settle       time.Duration // How long to wait for the ledger to catch up
	PollInterval time.Duration // Settle polling interval
	Seed         uint64        // Generator seed; 0 picks one from the clock
	Days         int           // Spread of generated dates, ending today
	Verbose      bool
}

// DefaultConfig returns a Config for a local server.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:9080",
		Username:     "demo-fan",
		Password:     "demo-password",
		Transactions: 1_000,
		BatchSize:    50,
		Workers:      runtime.NumCPU() * 2,
		Timeout:      30 * time.Second,
		Settle:       2 * time.Minute,
		PollInterval: 500 * time.Millisecond,
		Days:         90,
	}
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Batches    int
	Accepted   int
	Duplicates int
	Failed     int
	Scored     int
	Total      int64
	ByLeague   map[string]int64
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
