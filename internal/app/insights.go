package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/fanspend/internal/adapters/repository"
	"github.com/okian/fanspend/internal/domain/model"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// Leaderboard ranks users by ledger points. An empty league ranks across
// all leagues; a limit of 0 picks the default.
func (s *Service) Leaderboard(ctx context.Context, league string, limit int) ([]model.LeaderboardEntry, error) {
	var l model.League
	if strings.TrimSpace(league) != "" {
		var ok bool
		if l, ok = model.ParseLeague(league); !ok {
			return nil, fmt.Errorf("%w: unknown league %q", ErrInvalidInput, league)
		}
	}
	switch {
	case limit == 0:
		limit = defaultLeaderboardLimit
	case limit < 0 || limit > maxLeaderboardLimit:
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, maxLeaderboardLimit)
	}

	entries, err := s.store.Leaderboard(ctx, l, limit)
	if errors.Is(err, repository.ErrInvalidLimit) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries, nil
}

// Points returns the persisted ledger summary for a user.
func (s *Service) Points(ctx context.Context, userID string) (model.Summary, error) {
	sum, err := s.store.PointsForUser(ctx, userID)
	if err != nil {
		return model.Summary{}, fmt.Errorf("points: %w", err)
	}
	return sum, nil
}

// Sponsors returns the sponsor table as the matcher sees it.
func (s *Service) Sponsors(ctx context.Context) ([]model.SponsorEntry, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Entries(), nil
}

// SpendingByTeam totals transaction amounts per favorite team.
func (s *Service) SpendingByTeam(ctx context.Context) ([]model.TeamSpending, error) {
	out, err := s.store.SpendingByTeam(ctx)
	if err != nil {
		return nil, fmt.Errorf("spending by team: %w", err)
	}
	if out == nil {
		out = []model.TeamSpending{}
	}
	return out, nil
}

// TransactionsByPaymentChannel counts transactions per payment channel.
func (s *Service) TransactionsByPaymentChannel(ctx context.Context) ([]model.ChannelCount, error) {
	return s.channelCounts(ctx, "")
}

// TransactionsByTeam counts payment channels for fans of one team.
func (s *Service) TransactionsByTeam(ctx context.Context, team string) ([]model.ChannelCount, error) {
	team = strings.TrimSpace(team)
	if team == "" {
		return nil, fmt.Errorf("%w: team name is required", ErrInvalidInput)
	}
	return s.channelCounts(ctx, team)
}

func (s *Service) channelCounts(ctx context.Context, team string) ([]model.ChannelCount, error) {
	out, err := s.store.CountByPaymentChannel(ctx, team)
	if err != nil {
		return nil, fmt.Errorf("payment channels: %w", err)
	}
	if out == nil {
		out = []model.ChannelCount{}
	}
	return out, nil
}
