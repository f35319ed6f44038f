package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/tallyhq/tally/internal/apperr"
	"github.com/tallyhq/tally/internal/models"
)

// UserStorage defines the interface for user persistence operations.
// This allows the authenticator to be independent of the storage
// implementation.
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage UserStorage
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(storage UserStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{storage: storage}
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < 8 {
		return apperr.Validationf("password must be at least 8 characters")
	}
	return nil
}

// Register creates a new user account with a hashed password. An empty
// password is replaced with a random one, which supports quick signup
// from a public game link where the participant may not set a password.
func (a *PasswordAuthenticator) Register(ctx context.Context, username, displayName, credential string) (*models.User, error) {
	username = models.NormalizeUsername(username)
	if username == "" {
		return nil, apperr.Validationf("username is required")
	}
	if credential == "" {
		credential = randomPassword()
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	if existing, err := a.storage.GetUserByUsername(ctx, username); err == nil && existing != nil {
		return nil, apperr.Conflictf("username %q is already taken", username)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if displayName == "" {
		displayName = username
	}
	user := models.NewUser(username, displayName, string(hashed))

	if err := a.storage.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies the username and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, username, credential string) (*models.User, error) {
	user, err := a.storage.GetUserByUsername(ctx, models.NormalizeUsername(username))
	if err != nil {
		return nil, apperr.Unauthorizedf("invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return nil, apperr.Unauthorizedf("invalid username or password")
	}

	return user, nil
}

// randomPassword generates an unguessable throwaway password for
// quick-signup accounts created without one.
func randomPassword() string {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
