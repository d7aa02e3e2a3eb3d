// Package repository persists users, sponsors, aggregator transactions and
// the derived points ledger.
package repository

import (
	"context"

	"github.com/okian/fanspend/internal/domain/model"
)

// UserStore manages accounts and their per-league fan profiles.
type UserStore interface {
	// CreateUser stores u and returns it with ID and CreatedAt filled in.
	// Returns ErrDuplicate if the username is taken.
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	UserByUsername(ctx context.Context, username string) (model.User, error)
	UserByID(ctx context.Context, id string) (model.User, error)
	// UpdateProfile replaces the user's fan statuses and favorite teams.
	UpdateProfile(ctx context.Context, userID string, p model.UserProfile, teams map[model.League]string) error
	UserIDs(ctx context.Context) ([]string, error)
}

// OperatorStore manages customer and team logins.
type OperatorStore interface {
	// CreateOperator stores o and returns it with ID and CreatedAt filled
	// in. Returns ErrDuplicate if the login is taken for the role.
	CreateOperator(ctx context.Context, o model.Operator) (model.Operator, error)
	OperatorByLogin(ctx context.Context, role model.Role, login string) (model.Operator, error)
}

// SponsorStore holds the sponsor feed.
type SponsorStore interface {
	// ListSponsors returns sponsors in insertion order.
	ListSponsors(ctx context.Context) ([]model.SponsorEntry, error)
	// UpsertSponsors inserts new merchant names and ignores ones already
	// stored. It returns the number inserted.
	UpsertSponsors(ctx context.Context, entries []model.SponsorEntry) (int, error)
}

// TransactionStore holds aggregator rows per user.
type TransactionStore interface {
	// UpsertTransactions inserts rows keyed by (user, transaction id); an
	// existing row gets its amount and date updated.
	UpsertTransactions(ctx context.Context, userID string, txs []model.Transaction) (int, error)
	// TransactionsForUser returns the user's rows, newest date first.
	TransactionsForUser(ctx context.Context, userID string) ([]model.Transaction, error)
}

// LedgerStore holds derived points. Only points are persisted; match
// results are recomputed on every scoring run.
type LedgerStore interface {
	// ReplacePoints swaps the user's ledger for scored atomically.
	ReplacePoints(ctx context.Context, userID string, scored []model.ScoredTransaction) error
	PointsForUser(ctx context.Context, userID string) (model.Summary, error)
	// Leaderboard ranks users by points, optionally for one league.
	// Returns ErrInvalidLimit if limit < 1.
	Leaderboard(ctx context.Context, league model.League, limit int) ([]model.LeaderboardEntry, error)
}

// InsightStore answers the aggregate reporting queries.
type InsightStore interface {
	SpendingByTeam(ctx context.Context) ([]model.TeamSpending, error)
	// CountByPaymentChannel counts transactions per channel, restricted to
	// fans of team when team is not empty.
	CountByPaymentChannel(ctx context.Context, team string) ([]model.ChannelCount, error)
	Counts(ctx context.Context) (Counts, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	UserStore
	OperatorStore
	SponsorStore
	TransactionStore
	LedgerStore
	InsightStore

	Close() error
}

// Counts reports row counts for the stats endpoint.
type Counts struct {
	Users        int64 `json:"users"`
	Sponsors     int64 `json:"sponsors"`
	Transactions int64 `json:"transactions"`
	LedgerRows   int64 `json:"ledger_rows"`
}
