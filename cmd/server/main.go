package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/tallyhq/tally/internal/auth"
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/hub"
	"github.com/tallyhq/tally/internal/server"
	"github.com/tallyhq/tally/internal/service"
	"github.com/tallyhq/tally/internal/storage/sqlite"
	"github.com/tallyhq/tally/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	h := hub.New()
	hub.SetDefault(h)

	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)
	policy := service.Policy{Superuser: cfg.Superuser}

	auths := service.NewAuthService(authenticator, tokens)
	groups := service.NewGroupService(store, policy)
	games := service.NewGameService(store, policy, authenticator, tokens, h)
	stats := service.NewStatsService(store, policy)

	srv := server.New(auths, groups, games, stats, tokens, h, cfg.Release)

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Starting server", "addr", addr, "db", cfg.DBPath, "release", cfg.Release)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
