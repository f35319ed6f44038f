package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tallyhq/tally/internal/apperr"
	"github.com/tallyhq/tally/internal/auth"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/metrics"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/storage"
)

// tokenAttempts bounds the retry loop on a public-token uniqueness
// collision. The token space makes collisions rare; the bound keeps a
// pathological store from spinning.
const tokenAttempts = 3

// maxGameRows caps how far an index on the unauthenticated patch path
// can reach. Sparse addressing synthesizes every missing row up to the
// index, so an unbounded index would let one request allocate and
// persist arbitrarily many rows.
const maxGameRows = 500

// Broadcaster propagates a committed game state to every viewer of its
// public token. A fake implementation substitutes for the websocket hub
// in tests.
type Broadcaster interface {
	BroadcastGame(token string, game any)
}

// GameService is the ledger engine: it owns the zero-sum invariant, the
// settle state machine, and the collaborative mutation paths, and emits
// a full-state broadcast after every committed mutation.
//
// The zero-sum check is deliberately asymmetric per operation:
// create-with-transactions, replace-all, and row delete enforce it;
// single-field patch and row append do not, so collaborative editing
// can pass through transient imbalance. The decision is made at each
// call site below rather than in one universal hook.
type GameService struct {
	store         storage.Store
	policy        Policy
	authenticator auth.Authenticator
	tokens        *auth.JWTManager
	broadcaster   Broadcaster
}

// NewGameService creates a GameService. broadcaster may be nil, in
// which case mutations commit without real-time propagation.
func NewGameService(store storage.Store, policy Policy, authenticator auth.Authenticator, tokens *auth.JWTManager, broadcaster Broadcaster) *GameService {
	return &GameService{
		store:         store,
		policy:        policy,
		authenticator: authenticator,
		tokens:        tokens,
		broadcaster:   broadcaster,
	}
}

// CreateGame creates a game in a group. Private groups require
// membership; public groups silently auto-join a non-member requester
// before creation proceeds. A supplied transaction set is validated for
// the zero-sum invariant before anything persists.
func (s *GameService) CreateGame(ctx context.Context, requester Principal, name, groupID string, date int64, txs []models.Transaction) (*models.Game, error) {
	slog.Info("CreateGame request received", "name", name, "group_id", groupID, "user_id", requester.ID)

	if name == "" {
		return nil, apperr.Validationf("game name is required")
	}

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if !s.policy.IsMember(group, requester.ID) {
		if !group.IsPublic {
			return nil, apperr.Forbiddenf("you are not a member of this group")
		}
		group.MemberIDs = append(group.MemberIDs, requester.ID)
		group.EnsureCreatorMember()
		if err := s.store.UpdateGroup(ctx, group); err != nil {
			slog.Error("Auto-join failed", "group_id", groupID, "error", err)
			return nil, err
		}
		slog.Info("Auto-joined public group", "group_id", groupID, "user_id", requester.ID)
	}

	if len(txs) > 0 {
		if err := ledger.ValidateRows(txs); err != nil {
			return nil, err
		}
		if err := ledger.ValidateZeroSum(txs); err != nil {
			return nil, err
		}
	}

	rows := make([]models.Transaction, len(txs))
	for i := range txs {
		rows[i] = ledger.NewRow(txs[i].UserID, txs[i].PlayerName, txs[i].Amount)
	}

	game := &models.Game{
		Name:         name,
		Date:         date,
		CreatorID:    requester.ID,
		GroupID:      group.ID,
		Transactions: rows,
	}

	for attempt := 0; attempt < tokenAttempts; attempt++ {
		game.PublicToken = ledger.NewToken()
		err = s.store.CreateGame(ctx, game)
		if err == nil {
			break
		}
		if !apperr.IsKind(err, apperr.Conflict) {
			slog.Error("CreateGame failed", "error", err)
			return nil, err
		}
		slog.Warn("Public token collision, retrying", "attempt", attempt+1)
	}
	if err != nil {
		return nil, apperr.Conflictf("could not allocate a unique public token")
	}

	slog.Info("Game created", "game_id", game.ID, "token", game.PublicToken)
	s.broadcast(game)
	return game, nil
}

// GetGame retrieves a game for an authenticated group member.
func (s *GameService) GetGame(ctx context.Context, requester Principal, id string) (*models.Game, error) {
	game, err := s.store.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireViewer(ctx, game, requester); err != nil {
		return nil, err
	}
	return game, nil
}

// GetGameByToken retrieves a game by public token, no auth required.
func (s *GameService) GetGameByToken(ctx context.Context, token string) (*models.Game, error) {
	return s.store.GetGameByToken(ctx, token)
}

// ListGames lists the games visible to the requester, optionally
// restricted to one group.
func (s *GameService) ListGames(ctx context.Context, requester Principal, groupID string) ([]*models.Game, error) {
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

// DeleteGame removes a game. Only its creator or the super-user may.
func (s *GameService) DeleteGame(ctx context.Context, requester Principal, id string) error {
	slog.Info("DeleteGame request received", "game_id", id, "user_id", requester.ID)

	game, err := s.store.GetGame(ctx, id)
	if err != nil {
		return err
	}
	if game.CreatorID != requester.ID && !s.policy.IsSuper(requester) {
		return apperr.Forbiddenf("only the game creator can delete the game")
	}

	if err := s.store.DeleteGame(ctx, id); err != nil {
		slog.Error("DeleteGame failed", "game_id", id, "error", err)
		return err
	}

	slog.Info("Game deleted", "game_id", id)
	return nil
}

// UpdateGameName renames a game via its public token.
func (s *GameService) UpdateGameName(ctx context.Context, token, name string) (*models.Game, error) {
	if name == "" {
		return nil, apperr.Validationf("game name is required")
	}
	return s.mutate(ctx, token, func(game *models.Game) error {
		game.Name = name
		return nil
	})
}

// UpdateGameDate sets a game's optional date via its public token.
func (s *GameService) UpdateGameDate(ctx context.Context, token string, date int64) (*models.Game, error) {
	return s.mutate(ctx, token, func(game *models.Game) error {
		game.Date = date
		return nil
	})
}

// UpdateTransactionField patches one field of one row, addressed by row
// id or positional index. Index addressing beyond the current row count
// synthesizes placeholder rows up to and including that index (the
// sparse-grid semantics). No zero-sum check runs on this path.
func (s *GameService) UpdateTransactionField(ctx context.Context, token, rowRef, field string, value any) (*models.Game, error) {
	return s.mutate(ctx, token, func(game *models.Game) error {
		idx, err := s.resolveRow(game, rowRef, true)
		if err != nil {
			return err
		}
		game.Transactions = ledger.EnsureRow(game.Transactions, idx)
		row := &game.Transactions[idx]

		switch field {
		case "playerName":
			name, ok := value.(string)
			if !ok {
				return apperr.Validationf("playerName must be a string")
			}
			if name == "" {
				name = models.PlaceholderName
			}
			row.PlayerName = name
		case "amount":
			amount, err := parseAmount(value)
			if err != nil {
				return err
			}
			row.Amount = amount
		default:
			return apperr.Validationf("field must be playerName or amount")
		}
		return nil
	})
}

// AddTransaction appends one row with defaults for omitted fields. No
// zero-sum check runs on this path.
func (s *GameService) AddTransaction(ctx context.Context, token, playerName string, amount float64) (*models.Game, error) {
	return s.mutate(ctx, token, func(game *models.Game) error {
		game.Transactions = append(game.Transactions, ledger.NewRow("", playerName, amount))
		return nil
	})
}

// DeleteTransaction removes one row. Unlike patch and append, this path
// re-checks the zero-sum invariant and rejects a deletion that breaks
// balance.
func (s *GameService) DeleteTransaction(ctx context.Context, token, rowRef string) (*models.Game, error) {
	return s.mutate(ctx, token, func(game *models.Game) error {
		idx, err := s.resolveRow(game, rowRef, false)
		if err != nil {
			return err
		}
		remaining := append(game.Transactions[:idx:idx], game.Transactions[idx+1:]...)
		if err := ledger.ValidateZeroSum(remaining); err != nil {
			return err
		}
		game.Transactions = remaining
		return nil
	})
}

// ReplaceTransactions swaps the full transaction set of a game, for the
// authenticated bulk routes. The zero-sum invariant is validated over
// the replacement set before commit.
func (s *GameService) ReplaceTransactions(ctx context.Context, requester Principal, gameID string, txs []models.Transaction) (*models.Game, error) {
	slog.Info("ReplaceTransactions request received", "game_id", gameID, "rows", len(txs))

	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := s.requireViewer(ctx, game, requester); err != nil {
		return nil, err
	}
	if game.Settled {
		return nil, apperr.Forbiddenf("game is settled")
	}

	if err := ledger.ValidateRows(txs); err != nil {
		return nil, err
	}
	if err := ledger.ValidateZeroSum(txs); err != nil {
		return nil, err
	}

	rows := make([]models.Transaction, len(txs))
	for i := range txs {
		// Keep stable ids for rows that already existed.
		if txs[i].ID != "" && ledger.RowIndex(game.Transactions, txs[i].ID) >= 0 {
			rows[i] = txs[i]
			if rows[i].PlayerName == "" {
				rows[i].PlayerName = models.PlaceholderName
			}
		} else {
			rows[i] = ledger.NewRow(txs[i].UserID, txs[i].PlayerName, txs[i].Amount)
		}
	}
	game.Transactions = rows

	if err := s.store.UpdateGame(ctx, game); err != nil {
		slog.Error("ReplaceTransactions failed", "game_id", gameID, "error", err)
		return nil, err
	}

	s.broadcast(game)
	return game, nil
}

// SettleGame flips a game read-only once its ledger is free of
// case-insensitive duplicate player names. Duplicates fail validation
// and are reported back for display.
func (s *GameService) SettleGame(ctx context.Context, token string) (*models.Game, error) {
	slog.Info("SettleGame request received", "token", token)

	game, err := s.store.GetGameByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if dups := ledger.DuplicateNames(game.Transactions); len(dups) > 0 {
		slog.Warn("Settle rejected", "token", token, "duplicates", dups)
		return nil, apperr.DuplicateNames(dups)
	}

	game.Settled = true
	if err := s.store.UpdateGame(ctx, game); err != nil {
		slog.Error("SettleGame failed", "token", token, "error", err)
		return nil, err
	}

	slog.Info("Game settled", "game_id", game.ID)
	s.broadcast(game)
	return game, nil
}

// ReopenGame returns a settled game to the editable state. Unguarded;
// reopening an editable game is a state no-op.
func (s *GameService) ReopenGame(ctx context.Context, token string) (*models.Game, error) {
	slog.Info("ReopenGame request received", "token", token)

	game, err := s.store.GetGameByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	game.Settled = false
	if err := s.store.UpdateGame(ctx, game); err != nil {
		slog.Error("ReopenGame failed", "token", token, "error", err)
		return nil, err
	}

	s.broadcast(game)
	return game, nil
}

// QuickSignup registers an account from a public game link and joins the
// new user to the game's group, returning a signed session.
func (s *GameService) QuickSignup(ctx context.Context, token, username, displayName, password string) (*Session, error) {
	slog.Info("QuickSignup request received", "token", token, "username", username)

	game, err := s.store.GetGameByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.authenticator.Register(ctx, username, displayName, password)
	if err != nil {
		return nil, err
	}

	// Joining the group is best-effort: the group may have been deleted
	// out from under the game, and the signup still stands.
	if game.GroupID != "" {
		if group, err := s.store.GetGroup(ctx, game.GroupID); err == nil && !group.HasMember(user.ID) {
			group.MemberIDs = append(group.MemberIDs, user.ID)
			group.EnsureCreatorMember()
			if err := s.store.UpdateGroup(ctx, group); err != nil {
				slog.Warn("QuickSignup group join failed", "group_id", game.GroupID, "error", err)
			}
		}
	}

	jwt, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("Quick signup complete", "user_id", user.ID, "game_id", game.ID)
	return &Session{Token: jwt, User: user}, nil
}

// mutate is the shared path for public-token mutations: load, guard the
// settled state, apply, persist, broadcast.
func (s *GameService) mutate(ctx context.Context, token string, apply func(*models.Game) error) (*models.Game, error) {
	game, err := s.store.GetGameByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if game.Settled {
		return nil, apperr.Forbiddenf("game is settled")
	}

	if err := apply(game); err != nil {
		return nil, err
	}

	if err := s.store.UpdateGame(ctx, game); err != nil {
		slog.Error("Game mutation failed", "token", token, "error", err)
		return nil, err
	}

	s.broadcast(game)
	return game, nil
}

// resolveRow turns a row reference (stable row id, or positional index)
// into an index. When sparse is true an out-of-range index is allowed
// through for synthesis; otherwise it is NotFound.
func (s *GameService) resolveRow(game *models.Game, rowRef string, sparse bool) (int, error) {
	if idx := ledger.RowIndex(game.Transactions, rowRef); idx >= 0 {
		return idx, nil
	}
	idx, err := strconv.Atoi(rowRef)
	if err != nil || idx < 0 {
		return 0, apperr.NotFoundf("transaction not found")
	}
	if !sparse && idx >= len(game.Transactions) {
		return 0, apperr.NotFoundf("transaction not found")
	}
	if sparse && idx >= maxGameRows {
		return 0, apperr.Validationf("row index exceeds the %d row limit", maxGameRows)
	}
	return idx, nil
}

// broadcast emits the committed game to its token room, fire-and-forget.
// Broadcast failure must never fail the mutation; an absent hub no-ops.
func (s *GameService) broadcast(game *models.Game) {
	if s.broadcaster == nil {
		return
	}
	metrics.BroadcastsTotal.Inc()
	go s.broadcaster.BroadcastGame(game.PublicToken, game)
}

func parseAmount(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		amount, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, apperr.Validationf("amount must be a number")
		}
		return amount, nil
	default:
		return 0, apperr.Validationf("amount must be a number")
	}
}

// requireViewer enforces read access to a game through its group. A
// game orphaned by group deletion stays visible to its creator.
func (s *GameService) requireViewer(ctx context.Context, game *models.Game, requester Principal) error {
	if s.policy.IsSuper(requester) || requester.ID == game.CreatorID {
		return nil
	}
	if game.GroupID == "" {
		return apperr.Forbiddenf("you do not have access to this game")
	}
	group, err := s.store.GetGroup(ctx, game.GroupID)
	if err != nil {
		return err
	}
	if !s.policy.CanRead(group, requester) {
		return apperr.Forbiddenf("you do not have access to this game")
	}
	return nil
}
