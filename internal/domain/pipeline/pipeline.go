// Package pipeline matches and scores a batch of transactions for one user.
package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/okian/fanspend/internal/domain/matcher"
	"github.com/okian/fanspend/internal/domain/model"
	"github.com/okian/fanspend/internal/domain/scoring"
	"github.com/okian/fanspend/internal/domain/sponsor"
)

const defaultMinPartition = 64

// Batch is everything one scoring run needs, already loaded by the caller.
// Transactions are expected newest first; output keeps their order.
type Batch struct {
	Index        *sponsor.Index
	Profile      model.UserProfile
	Transactions []model.Transaction
}

// Result is the scored output of a batch.
type Result struct {
	Transactions []model.ScoredTransaction `json:"transactions"`
	Summary      model.Summary             `json:"summary"`
	Stats        Stats                     `json:"-"`
}

// Stats counts what happened to each input transaction.
type Stats struct {
	Scanned  int
	Matched  int
	Excluded map[scoring.Reason]int
	// Confidences holds the match confidence of every matched transaction,
	// in input order.
	Confidences []float64
}

// Pipeline runs the matcher and the scoring engine over batches. It keeps no
// state between runs.
type Pipeline struct {
	engine       *scoring.Engine
	concurrency  int
	minPartition int
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:       scoring.NewEngine(),
		concurrency:  runtime.NumCPU(),
		minPartition: defaultMinPartition,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Formula names the scoring formula in use.
func (p *Pipeline) Formula() string { return p.engine.Formula().Name() }

type outcome struct {
	scored model.ScoredTransaction
	match  model.MatchResult
	reason scoring.Reason
}

// Run scores b. Transactions are split into contiguous partitions; each
// goroutine writes only its own slots, so no locking is needed. The only
// errors are a missing index or profile and ctx cancellation.
func (p *Pipeline) Run(ctx context.Context, b Batch) (Result, error) {
	if b.Index == nil {
		return Result{}, ErrMissingIndex
	}
	if b.Profile == nil {
		return Result{}, ErrMissingProfile
	}

	n := len(b.Transactions)
	out := make([]outcome, n)

	g, gctx := errgroup.WithContext(ctx)
	for _, part := range partitions(n, p.concurrency, p.minPartition) {
		lo, hi := part[0], part[1]
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				tx := b.Transactions[i]
				m := matcher.Match(tx.MerchantName, b.Index)
				st, reason := p.engine.Evaluate(tx, m, b.Profile)
				out[i] = outcome{scored: st, match: m, reason: reason}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{
		Transactions: make([]model.ScoredTransaction, 0, n),
		Stats:        Stats{Scanned: n, Excluded: make(map[scoring.Reason]int)},
	}
	for _, o := range out {
		if o.match.Matched() {
			res.Stats.Matched++
			res.Stats.Confidences = append(res.Stats.Confidences, o.match.Confidence)
		}
		if o.reason != scoring.Included {
			res.Stats.Excluded[o.reason]++
			continue
		}
		res.Transactions = append(res.Transactions, o.scored)
	}
	res.Summary = scoring.Summarize(res.Transactions)
	return res, nil
}

// partitions splits [0,n) into at most workers contiguous ranges of at least
// minSize elements.
func partitions(n, workers, minSize int) [][2]int {
	if n == 0 {
		return nil
	}
	parts := n / minSize
	if parts < 1 {
		parts = 1
	}
	if parts > workers {
		parts = workers
	}
	size := (n + parts - 1) / parts

	out := make([][2]int, 0, parts)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		out = append(out, [2]int{lo, hi})
	}
	return out
}
