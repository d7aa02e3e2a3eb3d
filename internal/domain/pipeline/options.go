package pipeline

import "github.com/okian/fanspend/internal/domain/scoring"

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithEngine sets the scoring engine. Default scoring.NewEngine().
func WithEngine(e *scoring.Engine) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.engine = e
		}
	}
}

// WithConcurrency caps the goroutines used per batch. Values below 1 are
// ignored.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithMinPartition sets the smallest slice of transactions worth a
// goroutine of its own.
func WithMinPartition(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.minPartition = n
		}
	}
}
