package service

import (
	"fmt"
	"time"

	"github.com/okian/fanspend/internal/auth"
	"github.com/okian/fanspend/internal/config"
	"github.com/okian/fanspend/internal/domain/pipeline"
	"github.com/okian/fanspend/internal/domain/scoring"
	"github.com/okian/fanspend/internal/domain/sponsor"
	"github.com/okian/fanspend/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingest workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the ingest queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the remembered transaction ids.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPipeline replaces the scoring pipeline.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(s *Service) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// WithSponsorOptions sets how the sponsor table is validated when the
// index is built for a request.
func WithSponsorOptions(opts ...sponsor.Option) Option {
	return func(s *Service) {
		s.sponsorOpts = append([]sponsor.Option(nil), opts...)
	}
}

// WithIssuer sets the session token issuer.
func WithIssuer(i *auth.Issuer) Option {
	return func(s *Service) {
		if i != nil {
			s.issuer = i
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithRefreshCron schedules RefreshAll. Empty disables the schedule.
func WithRefreshCron(spec string) Option {
	return func(s *Service) {
		s.refreshCron = spec
	}
}

// OptionsFromConfig translates a validated Config into service options.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	var formula scoring.Formula = scoring.Simple{}
	if cfg.ScoringFormula == config.FormulaPerDollar {
		formula = scoring.NewPerDollar(cfg.PointsPerDollar, cfg.LeagueMultipliers)
	}

	opts := []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.IngestQueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithBcryptCost(cfg.BcryptCost),
		WithRefreshCron(cfg.RefreshCron),
		WithPipeline(pipeline.New(
			pipeline.WithEngine(scoring.NewEngine(scoring.WithFormula(formula))),
			pipeline.WithConcurrency(cfg.PipelineConcurrency),
		)),
		WithSponsorOptions(
			sponsor.WithValidation(sponsor.ParseMode(cfg.SponsorValidation)),
			sponsor.WithDuplicatePolicy(sponsor.ParseDuplicatePolicy(cfg.SponsorDuplicates)),
		),
	}

	if cfg.TokenSecret != "" {
		issuer, err := auth.NewIssuer([]byte(cfg.TokenSecret),
			auth.WithTTL(time.Duration(cfg.TokenTTLMinutes)*time.Minute))
		if err != nil {
			return nil, fmt.Errorf("token issuer: %w", err)
		}
		opts = append(opts, WithIssuer(issuer))
	}
	return opts, nil
}
