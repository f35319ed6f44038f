package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tallyhq/tally/internal/auth"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/storage/sqlite"
)

// fakeBroadcaster records broadcasts so tests can assert on the
// fire-and-forget path without a websocket hub.
type fakeBroadcaster struct {
	calls chan broadcastCall
}

type broadcastCall struct {
	token string
	game  *models.Game
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{calls: make(chan broadcastCall, 32)}
}

func (f *fakeBroadcaster) BroadcastGame(token string, game any) {
	g, _ := game.(*models.Game)
	f.calls <- broadcastCall{token: token, game: g}
}

func (f *fakeBroadcaster) next(t *testing.T) broadcastCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a broadcast")
		return broadcastCall{}
	}
}

// env bundles the services over one temp sqlite store.
type env struct {
	store       *sqlite.SQLiteStore
	auths       *AuthService
	groups      *GroupService
	games       *GameService
	stats       *StatsService
	broadcaster *fakeBroadcaster
}

func newEnv(t *testing.T) *env {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "tally-service-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	policy := Policy{Superuser: "wtx"}
	authenticator := auth.NewPasswordAuthenticator(store)
	tokens := auth.NewJWTManager("test-secret-key-for-tests", time.Hour)
	broadcaster := newFakeBroadcaster()

	return &env{
		store:       store,
		auths:       NewAuthService(authenticator, tokens),
		groups:      NewGroupService(store, policy),
		games:       NewGameService(store, policy, authenticator, tokens, broadcaster),
		stats:       NewStatsService(store, policy),
		broadcaster: broadcaster,
	}
}

// user registers an account and returns its principal.
func (e *env) user(t *testing.T, username string) Principal {
	t.Helper()
	session, err := e.auths.Register(context.Background(), username, username, "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return Principal{ID: session.User.ID, Username: session.User.Username}
}

// group creates a group owned by the principal.
func (e *env) group(t *testing.T, owner Principal, name string, public bool) *models.Group {
	t.Helper()
	group, err := e.groups.CreateGroup(context.Background(), owner, name, "", public)
	if err != nil {
		t.Fatalf("failed to create group %s: %v", name, err)
	}
	return group
}

func tx(player string, amount float64) models.Transaction {
	return models.Transaction{PlayerName: player, Amount: amount}
}
