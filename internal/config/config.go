// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New returns a Config populated with defaults.
//   - Load layers defaults, an optional YAML file and FANSPEND_* env vars.
//   - Validate reports the first offending key wrapped in ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/robfig/cron/v3"
)

// Supported values for enumerated keys.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"  // modernc.org/sqlite, pure Go
	DriverSQLite3  = "sqlite3" // mattn/go-sqlite3, cgo
	DriverPostgres = "postgres"

	ValidationPermissive = "permissive"
	ValidationStrict     = "strict"

	DuplicatesLast  = "last"
	DuplicatesFirst = "first"

	FormulaSimple    = "simple"
	FormulaPerDollar = "per_dollar"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// IngestQueueSize bounds the in-memory ingest queue.
	IngestQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the set of remembered aggregator transaction ids.
	DedupeSize int `koanf:"dedupe_size"`
	// PipelineConcurrency caps goroutines used to score one batch.
	PipelineConcurrency int `koanf:"pipeline_concurrency"`

	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`

	// SponsorValidation is "permissive" (drop malformed rows) or "strict".
	SponsorValidation string `koanf:"sponsor_validation"`
	// SponsorDuplicates picks which row wins for a repeated merchant name.
	SponsorDuplicates string `koanf:"sponsor_duplicates"`

	// ScoringFormula is "simple" (amount * fan multiplier) or "per_dollar".
	ScoringFormula    string             `koanf:"scoring_formula"`
	PointsPerDollar   float64            `koanf:"points_per_dollar"`
	LeagueMultipliers map[string]float64 `koanf:"league_multipliers"`

	TokenSecret     string `koanf:"token_secret"`
	TokenTTLMinutes int    `koanf:"token_ttl_minutes"`
	BcryptCost      int    `koanf:"bcrypt_cost"`

	// RefreshCron schedules the ledger refresh job; empty disables it.
	RefreshCron string `koanf:"refresh_cron"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		IngestQueueSize:     10_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          500_000,
		PipelineConcurrency: runtime.NumCPU(),
		DBDriver:            DriverSQLite,
		DBDSN:               "fanspend.db",
		SponsorValidation:   ValidationPermissive,
		SponsorDuplicates:   DuplicatesLast,
		ScoringFormula:      FormulaSimple,
		PointsPerDollar:     10,
		LeagueMultipliers: map[string]float64{
			"MLB": 1,
			"NBA": 1,
			"NFL": 1,
		},
		TokenTTLMinutes: 24 * 60,
		BcryptCost:      10,
		RefreshCron:     "@hourly",
	}
}

// Validate checks enumerated and required keys.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr", "must not be empty")
	case c.IngestQueueSize < 1:
		return invalid("queue_size", "must be positive")
	case c.WorkerCount < 1:
		return invalid("worker_count", "must be positive")
	case c.PipelineConcurrency < 1:
		return invalid("pipeline_concurrency", "must be positive")
	case c.TokenTTLMinutes < 1:
		return invalid("token_ttl_minutes", "must be positive")
	case c.PointsPerDollar < 0:
		return invalid("points_per_dollar", "must not be negative")
	}
	if !oneOf(c.DBDriver, DriverMemory, DriverSQLite, DriverSQLite3, DriverPostgres) {
		return invalid("db_driver", "unsupported driver "+c.DBDriver)
	}
	if c.DBDriver != DriverMemory && strings.TrimSpace(c.DBDSN) == "" {
		return invalid("db_dsn", "required for driver "+c.DBDriver)
	}
	if !oneOf(c.SponsorValidation, ValidationPermissive, ValidationStrict) {
		return invalid("sponsor_validation", "expected permissive or strict")
	}
	if !oneOf(c.SponsorDuplicates, DuplicatesLast, DuplicatesFirst) {
		return invalid("sponsor_duplicates", "expected last or first")
	}
	if !oneOf(c.ScoringFormula, FormulaSimple, FormulaPerDollar) {
		return invalid("scoring_formula", "expected simple or per_dollar")
	}
	for league, m := range c.LeagueMultipliers {
		if m < 0 {
			return invalid("league_multipliers", "negative multiplier for "+league)
		}
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("%w: refresh_cron: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func invalid(key, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, key, reason)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
