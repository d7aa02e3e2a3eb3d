package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/fanspend/internal/adapters/mq/queue"
	"github.com/okian/fanspend/internal/domain/dedupe"
	"github.com/okian/fanspend/internal/domain/model"
	"github.com/okian/fanspend/pkg/logger"
	"github.com/okian/fanspend/pkg/metrics"
)

// IngestReceipt reports what happened to a posted batch.
type IngestReceipt struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
}

// Ingest dedupes txs by transaction id, amount and date and queues the new
// ones for persistence and rescoring. A known id posted with a different
// amount or date is queued so the upsert can correct it. It never blocks on
// a full queue.
func (s *Service) Ingest(ctx context.Context, userID string, txs []model.Transaction) (IngestReceipt, error) {
	s.mu.RLock()
	started, deduper, q := s.started, s.deduper, s.ingest
	s.mu.RUnlock()
	if !started {
		return IngestReceipt{}, ErrNotStarted
	}

	for i, tx := range txs {
		if strings.TrimSpace(tx.ID) == "" {
			return IngestReceipt{}, fmt.Errorf("%w: row %d: transaction_id is required", ErrInvalidInput, i)
		}
	}
	if _, err := s.Profile(ctx, userID); err != nil {
		return IngestReceipt{}, err
	}

	var (
		receipt IngestReceipt
		fresh   = make([]model.Transaction, 0, len(txs))
		keys    = make([]string, 0, len(txs))
	)
	for _, tx := range txs {
		key := ingestKey(userID, tx)
		if deduper.SeenAndRecord(ctx, key) {
			receipt.Duplicates++
			continue
		}
		fresh = append(fresh, tx)
		keys = append(keys, key)
	}
	metrics.RecordIngestDuplicates(receipt.Duplicates)

	if len(fresh) == 0 {
		return receipt, nil
	}

	err := q.Enqueue(ctx, queue.IngestJob{UserID: userID, Transactions: fresh, EnqueuedAt: time.Now()})
	if err != nil {
		for _, key := range keys {
			deduper.Unrecord(ctx, key)
		}
		switch {
		case errors.Is(err, queue.ErrFull):
			return receipt, ErrQueueFull
		case errors.Is(err, queue.ErrClosed):
			return receipt, ErrNotStarted
		default:
			return receipt, fmt.Errorf("enqueue: %w", err)
		}
	}

	receipt.Accepted = len(fresh)
	s.logger.Debug(ctx, "ingest batch queued",
		logger.String("user_id", userID),
		logger.Int("accepted", receipt.Accepted),
		logger.Int("duplicates", receipt.Duplicates),
	)
	return receipt, nil
}

// Process persists one ingest job and rescores its user. Workers call it.
// On a storage failure the job's ids are forgotten so a client retry is
// accepted again.
func (s *Service) Process(ctx context.Context, job queue.IngestJob) error {
	if _, err := s.store.UpsertTransactions(ctx, job.UserID, job.Transactions); err != nil {
		s.forget(ctx, job)
		return fmt.Errorf("store transactions: %w", err)
	}
	if _, err := s.Refresh(ctx, job.UserID); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

func (s *Service) forget(ctx context.Context, job queue.IngestJob) {
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	if d == nil {
		return
	}
	for _, tx := range job.Transactions {
		d.Unrecord(ctx, ingestKey(job.UserID, tx))
	}
}

func ingestKey(userID string, tx model.Transaction) string {
	return dedupe.Key(userID, tx.ID, strconv.FormatFloat(tx.Amount, 'f', -1, 64), tx.Date)
}
