package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tallyhq/tally/internal/apperr"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/stats"
	"github.com/tallyhq/tally/internal/storage"
)

// StatsService is the read-only aggregation path: it selects the games
// the requester may see and folds them with the pure stats package. It
// has no invariants of its own beyond correct summation.
type StatsService struct {
	store  storage.Store
	policy Policy
}

// NewStatsService creates a StatsService.
func NewStatsService(store storage.Store, policy Policy) *StatsService {
	return &StatsService{store: store, policy: policy}
}

// Totals returns the sorted-descending balance table over the selected
// games, with display names resolved for linked users.
func (s *StatsService) Totals(ctx context.Context, requester Principal, groupID, timePeriod string) ([]stats.Balance, error) {
	slog.Info("Totals request received", "group_id", groupID, "period", timePeriod, "user_id", requester.ID)

	games, err := s.selectGames(ctx, requester, groupID)
	if err != nil {
		return nil, err
	}
	games = stats.FilterByPeriod(games, timePeriod, time.Now())

	totals := stats.Totals(games)
	for i := range totals {
		if stats.IsPlayerIdentity(totals[i].Identity) {
			continue
		}
		if user, err := s.store.GetUserByID(ctx, totals[i].Identity); err == nil {
			totals[i].Name = user.DisplayName
		}
	}
	return totals, nil
}

// UserHistory returns one user's chronological per-game amounts.
func (s *StatsService) UserHistory(ctx context.Context, requester Principal, userID, groupID string) ([]stats.GameAmount, error) {
	slog.Info("UserHistory request received", "target_user", userID, "group_id", groupID)

	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	games, err := s.selectGames(ctx, requester, groupID)
	if err != nil {
		return nil, err
	}
	return stats.UserHistory(games, userID), nil
}

// Trends returns the cumulative-balance time-series for the selected
// identities over the selected games.
func (s *StatsService) Trends(ctx context.Context, requester Principal, groupID string, playerIDs []string) ([]stats.TrendPoint, error) {
	slog.Info("Trends request received", "group_id", groupID, "players", len(playerIDs))

	games, err := s.selectGames(ctx, requester, groupID)
	if err != nil {
		return nil, err
	}
	return stats.Trends(games, playerIDs), nil
}

// selectGames resolves the requester's accessible game set, restricted
// to one group when groupID is set.
func (s *StatsService) selectGames(ctx context.Context, requester Principal, groupID string) ([]*models.Game, error) {
	if groupID != "" {
		group, err := s.store.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if !s.policy.CanRead(group, requester) {
			return nil, apperr.Forbiddenf("you are not a member of this group")
		}
		return s.store.ListGamesByGroup(ctx, groupID)
	}

	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	var games []*models.Game
	for _, g := range s.policy.AccessibleGroups(groups, requester) {
		groupGames, err := s.store.ListGamesByGroup(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		games = append(games, groupGames...)
	}
	return games, nil
}
