package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tallyhq/tally/internal/auth"
	"github.com/tallyhq/tally/internal/hub"
	"github.com/tallyhq/tally/internal/service"
	"github.com/tallyhq/tally/internal/storage/sqlite"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens := auth.NewJWTManager("test-secret-key-for-tests", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store)
	policy := service.Policy{Superuser: "wtx"}
	h := hub.New()

	auths := service.NewAuthService(authenticator, tokens)
	groups := service.NewGroupService(store, policy)
	games := service.NewGameService(store, policy, authenticator, tokens, h)
	stats := service.NewStatsService(store, policy)

	return New(auths, groups, games, stats, tokens, h, false).Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func registerUser(t *testing.T, router *gin.Engine, username string) (token, userID string) {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"password": "password123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", w.Code, w.Body.String())
	}

	var session struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(t, w, &session)
	return session.Token, session.User.ID
}

func createGroup(t *testing.T, router *gin.Engine, token, name string, public bool) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/groups", token, gin.H{
		"name":     name,
		"isPublic": public,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create group returned %d: %s", w.Code, w.Body.String())
	}

	var group struct {
		ID string `json:"id"`
	}
	decode(t, w, &group)
	return group.ID
}

func TestRegisterAndLogin(t *testing.T) {
	router := newTestRouter(t)

	token, userID := registerUser(t, router, "Alice")
	if token == "" || userID == "" {
		t.Fatal("expected a session token and user id")
	}

	// Username lookup is case-insensitive.
	w := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "ALICE",
		"password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice",
		"password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login returned %d, want 401", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/groups", "", gin.H{"name": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create group returned %d, want 401", w.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	if body.Error == "" {
		t.Fatal("expected an error message in the body")
	}
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token, _ := registerUser(t, router, "alice")
	groupID := createGroup(t, router, token, "poker night", false)

	w := doJSON(t, router, http.MethodPost, "/api/games", token, gin.H{
		"name":    "friday",
		"groupId": groupID,
		"transactions": []gin.H{
			{"playerName": "alice", "amount": 50},
			{"playerName": "bob", "amount": -50},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create game returned %d: %s", w.Code, w.Body.String())
	}

	var game struct {
		ID          string `json:"id"`
		PublicToken string `json:"publicToken"`
		Settled     bool   `json:"settled"`
	}
	decode(t, w, &game)
	if game.PublicToken == "" {
		t.Fatal("expected a public token")
	}

	// The public token reads the game without auth.
	w = doJSON(t, router, http.MethodGet, "/api/games/public/"+game.PublicToken, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get by token returned %d: %s", w.Code, w.Body.String())
	}

	// Single-field patch on a row beyond the current count synthesizes
	// placeholder rows.
	w = doJSON(t, router, http.MethodPatch,
		fmt.Sprintf("/api/games/public/%s/transaction/%d", game.PublicToken, 3), "",
		gin.H{"field": "amount", "value": 25})
	if w.Code != http.StatusOK {
		t.Fatalf("patch returned %d: %s", w.Code, w.Body.String())
	}

	var patched struct {
		Transactions []struct {
			PlayerName string  `json:"playerName"`
			Amount     float64 `json:"amount"`
		} `json:"transactions"`
	}
	decode(t, w, &patched)
	if len(patched.Transactions) != 4 {
		t.Fatalf("expected 4 rows after sparse patch, got %d", len(patched.Transactions))
	}
	if patched.Transactions[3].Amount != 25 {
		t.Fatalf("row 3 amount = %v, want 25", patched.Transactions[3].Amount)
	}
}

func TestCreateGameNonZeroSumReportsCurrentSum(t *testing.T) {
	router := newTestRouter(t)
	token, _ := registerUser(t, router, "alice")
	groupID := createGroup(t, router, token, "poker night", false)

	w := doJSON(t, router, http.MethodPost, "/api/games", token, gin.H{
		"name":    "lopsided",
		"groupId": groupID,
		"transactions": []gin.H{
			{"playerName": "alice", "amount": 100},
			{"playerName": "bob", "amount": -60},
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unbalanced create returned %d, want 400", w.Code)
	}

	var body struct {
		Error      string   `json:"error"`
		CurrentSum *float64 `json:"currentSum"`
	}
	decode(t, w, &body)
	if body.CurrentSum == nil || *body.CurrentSum != 40 {
		t.Fatalf("currentSum = %v, want 40", body.CurrentSum)
	}
}

func TestSettleDuplicatesOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token, _ := registerUser(t, router, "alice")
	groupID := createGroup(t, router, token, "poker night", false)

	w := doJSON(t, router, http.MethodPost, "/api/games", token, gin.H{
		"name":    "dupes",
		"groupId": groupID,
		"transactions": []gin.H{
			{"playerName": "Alice", "amount": 100},
			{"playerName": "alice", "amount": -100},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create game returned %d: %s", w.Code, w.Body.String())
	}
	var game struct {
		PublicToken string `json:"publicToken"`
	}
	decode(t, w, &game)

	w = doJSON(t, router, http.MethodPost, "/api/games/public/"+game.PublicToken+"/settle", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("settle returned %d, want 400", w.Code)
	}

	var body struct {
		Duplicates []string `json:"duplicates"`
	}
	decode(t, w, &body)
	if len(body.Duplicates) != 1 || body.Duplicates[0] != "alice" {
		t.Fatalf("duplicates = %v, want [alice]", body.Duplicates)
	}
}

func TestSettledGameRejectsMutations(t *testing.T) {
	router := newTestRouter(t)
	token, _ := registerUser(t, router, "alice")
	groupID := createGroup(t, router, token, "poker night", false)

	w := doJSON(t, router, http.MethodPost, "/api/games", token, gin.H{
		"name":    "done",
		"groupId": groupID,
		"transactions": []gin.H{
			{"playerName": "alice", "amount": 20},
			{"playerName": "bob", "amount": -20},
		},
	})
	var game struct {
		PublicToken string `json:"publicToken"`
	}
	decode(t, w, &game)

	if w := doJSON(t, router, http.MethodPost, "/api/games/public/"+game.PublicToken+"/settle", "", nil); w.Code != http.StatusOK {
		t.Fatalf("settle returned %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/games/public/"+game.PublicToken+"/transaction", "", gin.H{
		"playerName": "carol",
		"amount":     5,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("append on settled game returned %d, want 403", w.Code)
	}

	// The edit transition reopens the game.
	if w := doJSON(t, router, http.MethodPost, "/api/games/public/"+game.PublicToken+"/edit", "", nil); w.Code != http.StatusOK {
		t.Fatalf("edit returned %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodPost, "/api/games/public/"+game.PublicToken+"/transaction", "", gin.H{
		"playerName": "carol",
		"amount":     5,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("append after edit returned %d: %s", w.Code, w.Body.String())
	}
}

func TestGroupVisibilityOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	aliceToken, _ := registerUser(t, router, "alice")
	bobToken, _ := registerUser(t, router, "bob")

	privateID := createGroup(t, router, aliceToken, "secret", false)
	createGroup(t, router, aliceToken, "open table", true)

	// Bob cannot read the private group.
	if w := doJSON(t, router, http.MethodGet, "/api/groups/"+privateID, bobToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("private group read returned %d, want 403", w.Code)
	}

	// Anonymous listing sees only the public group.
	w := doJSON(t, router, http.MethodGet, "/api/groups", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("anonymous list returned %d: %s", w.Code, w.Body.String())
	}
	var groups []struct {
		Name string `json:"name"`
	}
	decode(t, w, &groups)
	if len(groups) != 1 || groups[0].Name != "open table" {
		t.Fatalf("anonymous listing = %+v, want only the public group", groups)
	}
}

func TestUpdateGameDateClearsToUnset(t *testing.T) {
	router := newTestRouter(t)
	token, _ := registerUser(t, router, "alice")
	groupID := createGroup(t, router, token, "poker night", false)

	w := doJSON(t, router, http.MethodPost, "/api/games", token, gin.H{
		"name":    "dated",
		"groupId": groupID,
	})
	var game struct {
		PublicToken string `json:"publicToken"`
	}
	decode(t, w, &game)

	if w := doJSON(t, router, http.MethodPut, "/api/games/public/"+game.PublicToken+"/date", "",
		gin.H{"date": 1700000000}); w.Code != http.StatusOK {
		t.Fatalf("set date returned %d: %s", w.Code, w.Body.String())
	}

	// An explicit zero clears the date back to unset.
	w = doJSON(t, router, http.MethodPut, "/api/games/public/"+game.PublicToken+"/date", "",
		gin.H{"date": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("clear date returned %d: %s", w.Code, w.Body.String())
	}
	var cleared struct {
		Date int64 `json:"date"`
	}
	decode(t, w, &cleared)
	if cleared.Date != 0 {
		t.Fatalf("date = %d, want 0", cleared.Date)
	}

	// A missing date field is still a validation error.
	if w := doJSON(t, router, http.MethodPut, "/api/games/public/"+game.PublicToken+"/date", "",
		gin.H{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing date returned %d, want 400", w.Code)
	}
}

func TestWebsocketJoinReceivesLatestState(t *testing.T) {
	router := newTestRouter(t)
	token, _ := registerUser(t, router, "alice")
	groupID := createGroup(t, router, token, "poker night", false)

	w := doJSON(t, router, http.MethodPost, "/api/games", token, gin.H{
		"name":    "before",
		"groupId": groupID,
		"transactions": []gin.H{
			{"playerName": "alice", "amount": 30},
			{"playerName": "bob", "amount": -30},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create game returned %d: %s", w.Code, w.Body.String())
	}
	var game struct {
		PublicToken string `json:"publicToken"`
	}
	decode(t, w, &game)

	// Mutations commit before any socket joins.
	if w := doJSON(t, router, http.MethodPut, "/api/games/public/"+game.PublicToken+"/name", "",
		gin.H{"name": "after"}); w.Code != http.StatusOK {
		t.Fatalf("rename returned %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, router, http.MethodPatch, "/api/games/public/"+game.PublicToken+"/transaction/0", "",
		gin.H{"field": "amount", "value": 75}); w.Code != http.StatusOK {
		t.Fatalf("patch returned %d: %s", w.Code, w.Body.String())
	}

	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	if err := conn.WriteJSON(hub.Envelope{Event: "join-game", Token: game.PublicToken}); err != nil {
		t.Fatalf("failed to send join: %v", err)
	}

	var env hub.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("failed to read join push: %v", err)
	}
	if env.Event != hub.EventGameUpdated {
		t.Fatalf("event = %q, want %q", env.Event, hub.EventGameUpdated)
	}

	var state struct {
		Name         string `json:"name"`
		Transactions []struct {
			Amount float64 `json:"amount"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("failed to decode pushed game: %v", err)
	}
	if state.Name != "after" {
		t.Fatalf("pushed name = %q, want the post-mutation name", state.Name)
	}
	if len(state.Transactions) != 2 || state.Transactions[0].Amount != 75 {
		t.Fatalf("pushed transactions = %+v, want the patched amounts", state.Transactions)
	}

	// The join push confirms registration, so a later commit must reach
	// this client through the broadcast path.
	if w := doJSON(t, router, http.MethodPatch, "/api/games/public/"+game.PublicToken+"/transaction/1", "",
		gin.H{"field": "amount", "value": -75}); w.Code != http.StatusOK {
		t.Fatalf("second patch returned %d: %s", w.Code, w.Body.String())
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}
	if env.Event != hub.EventGameUpdated {
		t.Fatalf("event = %q, want %q", env.Event, hub.EventGameUpdated)
	}
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("failed to decode broadcast game: %v", err)
	}
	if state.Transactions[1].Amount != -75 {
		t.Fatalf("broadcast amount = %v, want -75", state.Transactions[1].Amount)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", w.Code)
	}
}
