package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/tallyhq/tally/internal/apperr"
	"github.com/tallyhq/tally/internal/models"
)

func TestCreateGame(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner")
	outsider := e.user(t, "outsider")

	private := e.group(t, owner, "Private", false)
	public := e.group(t, owner, "Public", true)

	t.Run("balanced transactions accepted", func(t *testing.T) {
		game, err := e.games.CreateGame(ctx, owner, "Friday", private.ID, 0, []models.Transaction{
			tx("Alice", 100), tx("Bob", -50), tx("Cara", -50),
		})
		if err != nil {
			t.Fatalf("CreateGame failed: %v", err)
		}
		if game.PublicToken == "" {
			t.Error("expected a public token")
		}
		if game.Settled {
			t.Error("new game must be editable")
		}
		if len(game.Transactions) != 3 || game.Transactions[0].ID == "" {
			t.Errorf("transactions = %v", game.Transactions)
		}
		call := e.broadcaster.next(t)
		if call.token != game.PublicToken {
			t.Errorf("broadcast token = %q, want %q", call.token, game.PublicToken)
		}
	})

	t.Run("unbalanced transactions rejected with the computed sum", func(t *testing.T) {
		_, err := e.games.CreateGame(ctx, owner, "Bad", private.ID, 0, []models.Transaction{
			tx("Alice", 100), tx("Bob", -50),
		})
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Kind != apperr.Validation {
			t.Fatalf("expected Validation, got %v", err)
		}
		if appErr.CurrentSum == nil || math.Abs(*appErr.CurrentSum-50) > 0.001 {
			t.Errorf("CurrentSum = %v, want 50", appErr.CurrentSum)
		}
	})

	t.Run("empty name rejected", func(t *testing.T) {
		_, err := e.games.CreateGame(ctx, owner, "", private.ID, 0, nil)
		if !apperr.IsKind(err, apperr.Validation) {
			t.Fatalf("expected Validation, got %v", err)
		}
	})

	t.Run("non-member of a private group is forbidden", func(t *testing.T) {
		_, err := e.games.CreateGame(ctx, outsider, "Nope", private.ID, 0, nil)
		if !apperr.IsKind(err, apperr.Forbidden) {
			t.Fatalf("expected Forbidden, got %v", err)
		}
	})

	t.Run("non-member of a public group is auto-joined", func(t *testing.T) {
		if _, err := e.games.CreateGame(ctx, outsider, "Joinable", public.ID, 0, nil); err != nil {
			t.Fatalf("CreateGame failed: %v", err)
		}
		group, err := e.store.GetGroup(ctx, public.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if !group.HasMember(outsider.ID) {
			t.Error("creator should have been auto-joined to the public group")
		}
	})

	t.Run("missing group is NotFound", func(t *testing.T) {
		_, err := e.games.CreateGame(ctx, owner, "G", "no-such-group", 0, nil)
		if !apperr.IsKind(err, apperr.NotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})
}

func TestUpdateTransactionField(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner")
	group := e.group(t, owner, "G", false)

	game, err := e.games.CreateGame(ctx, owner, "Sparse", group.ID, 0, []models.Transaction{
		tx("Alice", 100), tx("Bob", -100),
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	token := game.PublicToken

	t.Run("sparse index synthesizes placeholder rows", func(t *testing.T) {
		updated, err := e.games.UpdateTransactionField(ctx, token, "5", "amount", 50.0)
		if err != nil {
			t.Fatalf("UpdateTransactionField failed: %v", err)
		}
		if len(updated.Transactions) != 6 {
			t.Fatalf("rows = %d, want 6", len(updated.Transactions))
		}
		for i := 2; i <= 4; i++ {
			row := updated.Transactions[i]
			if row.PlayerName != models.PlaceholderName || row.Amount != 0 {
				t.Errorf("row %d = %+v, want zero placeholder", i, row)
			}
		}
		if updated.Transactions[5].Amount != 50 {
			t.Errorf("row 5 amount = %v, want 50", updated.Transactions[5].Amount)
		}
		// No zero-sum enforcement on this path: the game is now unbalanced
		// and that's fine until a commit boundary.
	})

	t.Run("patch by stable row id", func(t *testing.T) {
		game, err := e.games.GetGameByToken(ctx, token)
		if err != nil {
			t.Fatalf("GetGameByToken failed: %v", err)
		}
		rowID := game.Transactions[0].ID
		updated, err := e.games.UpdateTransactionField(ctx, token, rowID, "playerName", "Alicia")
		if err != nil {
			t.Fatalf("patch by id failed: %v", err)
		}
		if updated.Transactions[0].PlayerName != "Alicia" {
			t.Errorf("playerName = %q, want Alicia", updated.Transactions[0].PlayerName)
		}
		if updated.Transactions[0].ID != rowID {
			t.Error("row id must be stable across edits")
		}
	})

	t.Run("empty player name collapses to placeholder", func(t *testing.T) {
		updated, err := e.games.UpdateTransactionField(ctx, token, "0", "playerName", "")
		if err != nil {
			t.Fatalf("patch failed: %v", err)
		}
		if updated.Transactions[0].PlayerName != models.PlaceholderName {
			t.Errorf("playerName = %q, want placeholder", updated.Transactions[0].PlayerName)
		}
	})

	t.Run("numeric string amounts accepted", func(t *testing.T) {
		updated, err := e.games.UpdateTransactionField(ctx, token, "1", "amount", "-25.5")
		if err != nil {
			t.Fatalf("patch failed: %v", err)
		}
		if math.Abs(updated.Transactions[1].Amount+25.5) > 0.001 {
			t.Errorf("amount = %v, want -25.5", updated.Transactions[1].Amount)
		}
	})

	t.Run("non-numeric amount rejected", func(t *testing.T) {
		_, err := e.games.UpdateTransactionField(ctx, token, "1", "amount", "lots")
		if !apperr.IsKind(err, apperr.Validation) {
			t.Fatalf("expected Validation, got %v", err)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := e.games.UpdateTransactionField(ctx, token, "1", "settled", true)
		if !apperr.IsKind(err, apperr.Validation) {
			t.Fatalf("expected Validation, got %v", err)
		}
	})

	t.Run("index past the row cap rejected", func(t *testing.T) {
		_, err := e.games.UpdateTransactionField(ctx, token, "100000000", "amount", 1.0)
		if !apperr.IsKind(err, apperr.Validation) {
			t.Fatalf("expected Validation, got %v", err)
		}
		game, err := e.games.GetGameByToken(ctx, token)
		if err != nil {
			t.Fatalf("GetGameByToken failed: %v", err)
		}
		if len(game.Transactions) != 6 {
			t.Fatalf("rows = %d, rejected patch must not synthesize rows", len(game.Transactions))
		}
	})
}

func TestAddAndDeleteTransaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner")
	group := e.group(t, owner, "G", false)

	game, err := e.games.CreateGame(ctx, owner, "G1", group.ID, 0, []models.Transaction{
		tx("Alice", 100), tx("Bob", -100),
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	token := game.PublicToken

	t.Run("append defaults without invariant check", func(t *testing.T) {
		updated, err := e.games.AddTransaction(ctx, token, "", 0)
		if err != nil {
			t.Fatalf("AddTransaction failed: %v", err)
		}
		last := updated.Transactions[len(updated.Transactions)-1]
		if last.PlayerName != models.PlaceholderName || last.Amount != 0 {
			t.Errorf("appended row = %+v, want zero placeholder", last)
		}
	})

	t.Run("append with values", func(t *testing.T) {
		updated, err := e.games.AddTransaction(ctx, token, "Cara", 30)
		if err != nil {
			t.Fatalf("AddTransaction failed: %v", err)
		}
		last := updated.Transactions[len(updated.Transactions)-1]
		if last.PlayerName != "Cara" || last.Amount != 30 {
			t.Errorf("appended row = %+v", last)
		}
	})

	t.Run("deletion breaking balance is rejected", func(t *testing.T) {
		// Rows: Alice 100, Bob -100, placeholder 0, Cara 30. Deleting
		// Cara would leave 0; deleting Alice would leave -70 and must fail.
		_, err := e.games.DeleteTransaction(ctx, token, "0")
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Kind != apperr.Validation {
			t.Fatalf("expected Validation, got %v", err)
		}
		if appErr.CurrentSum == nil {
			t.Error("expected CurrentSum on a rejected deletion")
		}
	})

	t.Run("deletion keeping balance commits", func(t *testing.T) {
		updated, err := e.games.DeleteTransaction(ctx, token, "3")
		if err != nil {
			t.Fatalf("DeleteTransaction failed: %v", err)
		}
		if len(updated.Transactions) != 3 {
			t.Errorf("rows = %d, want 3", len(updated.Transactions))
		}
	})

	t.Run("deleting a missing row is NotFound", func(t *testing.T) {
		_, err := e.games.DeleteTransaction(ctx, token, "99")
		if !apperr.IsKind(err, apperr.NotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})
}

func TestSettleStateMachine(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner")
	group := e.group(t, owner, "G", false)

	t.Run("duplicate names block settling", func(t *testing.T) {
		game, err := e.games.CreateGame(ctx, owner, "Dups", group.ID, 0, []models.Transaction{
			tx("Alice", 100), tx("alice", -100),
		})
		if err != nil {
			t.Fatalf("CreateGame failed: %v", err)
		}

		_, err = e.games.SettleGame(ctx, game.PublicToken)
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Kind != apperr.Validation {
			t.Fatalf("expected Validation, got %v", err)
		}
		if len(appErr.Duplicates) != 1 || appErr.Duplicates[0] != "alice" {
			t.Errorf("duplicates = %v, want [alice]", appErr.Duplicates)
		}
	})

	game, err := e.games.CreateGame(ctx, owner, "Clean", group.ID, 0, []models.Transaction{
		tx("Alice", 100), tx("Bob", -100),
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	token := game.PublicToken

	t.Run("settle flips read-only", func(t *testing.T) {
		settled, err := e.games.SettleGame(ctx, token)
		if err != nil {
			t.Fatalf("SettleGame failed: %v", err)
		}
		if !settled.Settled {
			t.Error("expected settled flag")
		}
	})

	t.Run("mutations on a settled game are forbidden", func(t *testing.T) {
		if _, err := e.games.AddTransaction(ctx, token, "X", 1); !apperr.IsKind(err, apperr.Forbidden) {
			t.Errorf("add: expected Forbidden, got %v", err)
		}
		if _, err := e.games.UpdateTransactionField(ctx, token, "0", "amount", 1.0); !apperr.IsKind(err, apperr.Forbidden) {
			t.Errorf("patch: expected Forbidden, got %v", err)
		}
		if _, err := e.games.DeleteTransaction(ctx, token, "0"); !apperr.IsKind(err, apperr.Forbidden) {
			t.Errorf("delete: expected Forbidden, got %v", err)
		}
	})

	t.Run("edit transition reopens", func(t *testing.T) {
		reopened, err := e.games.ReopenGame(ctx, token)
		if err != nil {
			t.Fatalf("ReopenGame failed: %v", err)
		}
		if reopened.Settled {
			t.Error("expected editable game")
		}
		// Reopening an editable game is a state no-op.
		again, err := e.games.ReopenGame(ctx, token)
		if err != nil {
			t.Fatalf("second ReopenGame failed: %v", err)
		}
		if again.Settled {
			t.Error("expected editable game")
		}
	})
}

func TestReplaceTransactions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner")
	group := e.group(t, owner, "G", false)

	game, err := e.games.CreateGame(ctx, owner, "R", group.ID, 0, []models.Transaction{
		tx("Alice", 100), tx("Bob", -100),
	})
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	t.Run("unbalanced replacement rejected, state untouched", func(t *testing.T) {
		_, err := e.games.ReplaceTransactions(ctx, owner, game.ID, []models.Transaction{
			tx("Alice", 10),
		})
		if !apperr.IsKind(err, apperr.Validation) {
			t.Fatalf("expected Validation, got %v", err)
		}
		current, err := e.store.GetGame(ctx, game.ID)
		if err != nil {
			t.Fatalf("GetGame failed: %v", err)
		}
		if len(current.Transactions) != 2 {
			t.Errorf("rows = %d, want unchanged 2", len(current.Transactions))
		}
	})

	t.Run("tolerance edge accepted", func(t *testing.T) {
		updated, err := e.games.ReplaceTransactions(ctx, owner, game.ID, []models.Transaction{
			tx("Alice", 100), tx("Bob", -50), tx("Cara", -50.005),
		})
		if err != nil {
			t.Fatalf("ReplaceTransactions failed: %v", err)
		}
		if len(updated.Transactions) != 3 {
			t.Errorf("rows = %d, want 3", len(updated.Transactions))
		}
	})

	t.Run("existing row ids survive replacement", func(t *testing.T) {
		current, err := e.store.GetGame(ctx, game.ID)
		if err != nil {
			t.Fatalf("GetGame failed: %v", err)
		}
		keep := current.Transactions[0]
		keep.Amount = 40
		updated, err := e.games.ReplaceTransactions(ctx, owner, game.ID, []models.Transaction{
			keep, tx("Bob", -40),
		})
		if err != nil {
			t.Fatalf("ReplaceTransactions failed: %v", err)
		}
		if updated.Transactions[0].ID != keep.ID {
			t.Error("pre-existing row id should be preserved")
		}
	})
}

func TestDeleteGame(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner")
	member := e.user(t, "member")
	group := e.group(t, owner, "G", true)
	if _, err := e.groups.AddMember(ctx, member, group.ID, "member"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	game, err := e.games.CreateGame(ctx, owner, "D", group.ID, 0, nil)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	if err := e.games.DeleteGame(ctx, member, game.ID); !apperr.IsKind(err, apperr.Forbidden) {
		t.Fatalf("expected Forbidden for non-creator, got %v", err)
	}

	superuser := e.user(t, "wtx")
	if err := e.games.DeleteGame(ctx, superuser, game.ID); err != nil {
		t.Fatalf("super-user delete failed: %v", err)
	}
}

func TestQuickSignup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner")
	group := e.group(t, owner, "G", false)

	game, err := e.games.CreateGame(ctx, owner, "Q", group.ID, 0, nil)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}

	session, err := e.games.QuickSignup(ctx, game.PublicToken, "Newbie", "New Player", "")
	if err != nil {
		t.Fatalf("QuickSignup failed: %v", err)
	}
	if session.Token == "" {
		t.Error("expected a session token")
	}
	if session.User.Username != "newbie" {
		t.Errorf("username = %q, want normalized newbie", session.User.Username)
	}

	updated, err := e.store.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if !updated.HasMember(session.User.ID) {
		t.Error("quick-signup user should have joined the game's group")
	}

	// The handle is now taken.
	if _, err := e.games.QuickSignup(ctx, game.PublicToken, "newbie", "", ""); !apperr.IsKind(err, apperr.Conflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}
