// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/tallyhq/tally/internal/models"
)

// Store defines the interface for persistence operations. This
// abstraction allows swapping storage backends (SQLite, PostgreSQL,
// etc.) without changing the service layer.
//
// Games are stored whole-document: UpdateGame replaces the entire
// transaction list. Concurrent updates to the same game race at the
// store and the last write wins, which is the accepted consistency
// model for the collaborative editor.
type Store interface {
	// CreateUser persists a new user. The ID and CreatedAt fields are
	// populated by the store. Fails with Conflict on a duplicate
	// username (uniqueness is case-insensitive; usernames are stored
	// lowercase).
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername retrieves a user by lowercase username.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateGroup persists a new group with its member list.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group by ID, members included.
	GetGroup(ctx context.Context, id string) (*models.Group, error)

	// UpdateGroup replaces a group's fields and member list.
	UpdateGroup(ctx context.Context, group *models.Group) error

	// DeleteGroup removes a group. Its games are left in place (they
	// stay reachable by public token); only the group reference is
	// cleared by the schema.
	DeleteGroup(ctx context.Context, id string) error

	// ListGroups retrieves all groups. Visibility filtering is the
	// caller's concern.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// CreateGame persists a game with its ordered transactions. Fails
	// with Conflict when the public token is already taken.
	CreateGame(ctx context.Context, game *models.Game) error

	// GetGame retrieves a game by ID with its ordered transactions.
	GetGame(ctx context.Context, id string) (*models.Game, error)

	// GetGameByToken retrieves a game by its public token.
	GetGameByToken(ctx context.Context, token string) (*models.Game, error)

	// UpdateGame replaces a game's fields and whole transaction list.
	UpdateGame(ctx context.Context, game *models.Game) error

	// DeleteGame removes a game and its transactions.
	DeleteGame(ctx context.Context, id string) error

	// ListGamesByGroup retrieves all games of one group, newest first.
	ListGamesByGroup(ctx context.Context, groupID string) ([]*models.Game, error)

	// Close releases any resources held by the store.
	Close() error
}
