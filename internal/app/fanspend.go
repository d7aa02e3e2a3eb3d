package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/fanspend/internal/domain/model"
	"github.com/okian/fanspend/internal/domain/pipeline"
	"github.com/okian/fanspend/internal/domain/sponsor"
	"github.com/okian/fanspend/pkg/logger"
	"github.com/okian/fanspend/pkg/metrics"
)

// FanSpend scores every stored transaction of the user against the sponsor
// table as it is right now. Nothing is written.
func (s *Service) FanSpend(ctx context.Context, userID string) (pipeline.Result, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}
	return s.score(ctx, idx, userID)
}

// ScoredTransactions is FanSpend without the summary.
func (s *Service) ScoredTransactions(ctx context.Context, userID string) ([]model.ScoredTransaction, error) {
	res, err := s.FanSpend(ctx, userID)
	if err != nil {
		return nil, err
	}
	return res.Transactions, nil
}

// Refresh rescores the user and replaces their points ledger.
func (s *Service) Refresh(ctx context.Context, userID string) (pipeline.Result, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}
	return s.refresh(ctx, idx, userID)
}

// RefreshAll rescores every user with one snapshot of the sponsor table.
// A failure for one user does not stop the others; the joined error lists
// every failure and the count is of users refreshed successfully.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return 0, err
	}
	ids, err := s.store.UserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	var (
		n    int
		errs []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.refresh(ctx, idx, id); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// refresh scores and replaces the ledger under the user's lock. Two
// refreshes of one user never interleave.
func (s *Service) refresh(ctx context.Context, idx *sponsor.Index, userID string) (pipeline.Result, error) {
	defer s.lockUser(userID)()

	res, err := s.score(ctx, idx, userID)
	if err != nil {
		return pipeline.Result{}, err
	}
	if err := s.store.ReplacePoints(ctx, userID, res.Transactions); err != nil {
		return pipeline.Result{}, fmt.Errorf("replace points: %w", err)
	}
	return res, nil
}

func (s *Service) lockUser(userID string) (unlock func()) {
	v, _ := s.userLocks.LoadOrStore(userID, new(sync.Mutex))
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) score(ctx context.Context, idx *sponsor.Index, userID string) (pipeline.Result, error) {
	u, err := s.Profile(ctx, userID)
	if err != nil {
		return pipeline.Result{}, err
	}
	txs, err := s.store.TransactionsForUser(ctx, userID)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("load transactions: %w", err)
	}
	profile := u.Profile
	if profile == nil {
		profile = model.UserProfile{}
	}

	start := time.Now()
	res, err := s.pipeline.Run(ctx, pipeline.Batch{Index: idx, Profile: profile, Transactions: txs})
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("score: %w", err)
	}
	metrics.RecordPipelineLatency(float64(time.Since(start).Milliseconds()))
	recordStats(res)

	s.logger.Debug(ctx, "scored transactions",
		logger.String("user_id", userID),
		logger.Int("scanned", res.Stats.Scanned),
		logger.Int("matched", res.Stats.Matched),
		logger.Int("scored", len(res.Transactions)),
		logger.Int64("points", res.Summary.TotalPoints),
	)
	return res, nil
}

// loadIndex builds the sponsor index from the store. It runs once per
// request so sponsor edits take effect without a restart.
func (s *Service) loadIndex(ctx context.Context) (*sponsor.Index, error) {
	entries, err := s.store.ListSponsors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sponsors: %w", err)
	}
	idx, err := sponsor.Build(entries, s.sponsorOpts...)
	if err != nil {
		return nil, fmt.Errorf("build sponsor index: %w", err)
	}
	metrics.UpdateSponsorIndexSize(idx.Len())
	if d := idx.Dropped(); d > 0 {
		metrics.RecordSponsorsDropped(d)
		s.logger.Warn(ctx, "malformed sponsor rows skipped", logger.Int("dropped", d))
	}
	return idx, nil
}

func recordStats(res pipeline.Result) {
	for _, st := range res.Transactions {
		metrics.RecordTransactionScored(st.League.String(), st.Points)
	}
	for _, c := range res.Stats.Confidences {
		metrics.RecordTransactionMatched()
		metrics.ObserveMatchConfidence(c)
	}
	for reason, n := range res.Stats.Excluded {
		metrics.RecordTransactionsExcluded(string(reason), n)
	}
}
