package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/apperr"
	"github.com/tallyhq/tally/internal/models"
)

// CreateGame persists a game with its ordered transactions. Returns a
// Conflict error when the public token is already taken, so the caller
// can regenerate and retry.
func (s *SQLiteStore) CreateGame(ctx context.Context, game *models.Game) error {
	if game.ID == "" {
		game.ID = uuid.New().String()
	}
	if game.CreatedAt == 0 {
		game.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO games (id, name, date, creator_id, group_id, public_token, settled, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		game.ID, game.Name, game.Date, game.CreatorID, nullable(game.GroupID), game.PublicToken, boolToInt(game.Settled), game.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Conflictf("public token collision")
	}
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}

	if err := insertTransactions(ctx, tx, game); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGame retrieves a game by ID with its ordered transactions.
func (s *SQLiteStore) GetGame(ctx context.Context, id string) (*models.Game, error) {
	return s.getGame(ctx, "id = ?", id)
}

// GetGameByToken retrieves a game by its public token.
func (s *SQLiteStore) GetGameByToken(ctx context.Context, token string) (*models.Game, error) {
	return s.getGame(ctx, "public_token = ?", token)
}

func (s *SQLiteStore) getGame(ctx context.Context, where string, arg any) (*models.Game, error) {
	game := &models.Game{}
	var settled int
	var groupID sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, date, creator_id, group_id, public_token, settled, created_at FROM games WHERE "+where,
		arg,
	).Scan(&game.ID, &game.Name, &game.Date, &game.CreatorID, &groupID, &game.PublicToken, &settled, &game.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("game not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	game.GroupID = groupID.String
	game.Settled = settled != 0

	if game.Transactions, err = s.gameTransactions(ctx, game.ID); err != nil {
		return nil, err
	}
	return game, nil
}

// UpdateGame replaces a game's fields and whole transaction list.
// Whole-document granularity: concurrent updates race and the last
// write wins.
func (s *SQLiteStore) UpdateGame(ctx context.Context, game *models.Game) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE games SET name = ?, date = ?, settled = ? WHERE id = ?",
		game.Name, game.Date, boolToInt(game.Settled), game.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("game not found")
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE game_id = ?", game.ID); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}
	if err := insertTransactions(ctx, tx, game); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteGame removes a game; its transactions cascade.
func (s *SQLiteStore) DeleteGame(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM games WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("game not found")
	}
	return nil
}

// ListGamesByGroup retrieves all games of one group, newest first.
func (s *SQLiteStore) ListGamesByGroup(ctx context.Context, groupID string) ([]*models.Game, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM games WHERE group_id = ? ORDER BY created_at DESC",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}

	games := make([]*models.Game, 0, len(ids))
	for _, id := range ids {
		game, err := s.GetGame(ctx, id)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, nil
}

func (s *SQLiteStore) gameTransactions(ctx context.Context, gameID string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, player_name, amount, created_at FROM transactions WHERE game_id = ? ORDER BY position",
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.PlayerName, &t.Amount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

func insertTransactions(ctx context.Context, tx *sql.Tx, game *models.Game) error {
	for i := range game.Transactions {
		row := &game.Transactions[i]
		if row.ID == "" {
			row.ID = uuid.New().String()
		}
		if row.CreatedAt == 0 {
			row.CreatedAt = time.Now().Unix()
		}
		if row.PlayerName == "" {
			row.PlayerName = models.PlaceholderName
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO transactions (id, game_id, user_id, player_name, amount, position, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			row.ID, game.ID, row.UserID, row.PlayerName, row.Amount, i, row.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
