package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tallyhq/tally/internal/apperr"
	"github.com/tallyhq/tally/internal/auth"
	"github.com/tallyhq/tally/internal/models"
)

// AuthService handles registration and login, pairing the authenticator
// with token issuance.
type AuthService struct {
	authenticator auth.Authenticator
	tokens        *auth.JWTManager
}

// NewAuthService creates an AuthService.
func NewAuthService(authenticator auth.Authenticator, tokens *auth.JWTManager) *AuthService {
	return &AuthService{authenticator: authenticator, tokens: tokens}
}

// Session is the result of a successful registration or login.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a new account and returns a signed session.
func (s *AuthService) Register(ctx context.Context, username, displayName, password string) (*Session, error) {
	slog.Info("Register request received", "username", username)

	if username == "" {
		return nil, apperr.Validationf("username is required")
	}

	user, err := s.authenticator.Register(ctx, username, displayName, password)
	if err != nil {
		slog.Warn("Register failed", "username", username, "error", err)
		return nil, err
	}

	session, err := s.session(user)
	if err != nil {
		return nil, err
	}

	slog.Info("User registered", "user_id", user.ID, "username", user.Username)
	return session, nil
}

// Login verifies credentials and returns a signed session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	slog.Info("Login request received", "username", username)

	user, err := s.authenticator.Authenticate(ctx, username, password)
	if err != nil {
		slog.Warn("Login failed", "username", username, "error", err)
		return nil, err
	}

	session, err := s.session(user)
	if err != nil {
		return nil, err
	}

	slog.Info("Login successful", "user_id", user.ID)
	return session, nil
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}
