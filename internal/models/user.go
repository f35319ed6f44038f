package models

import "strings"

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `json:"id"`

	// Username is the unique login handle, stored lowercase.
	// Uniqueness is case-insensitive: "Alice" and "alice" are the same handle.
	Username string `json:"username"`

	// DisplayName is the mutable human-readable name.
	DisplayName string `json:"displayName"`

	// PasswordHash is the bcrypt hash of the user's password.
	// Never serialized in API responses.
	PasswordHash string `json:"-"`

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64 `json:"createdAt"`
}

// NewUser builds a user with a normalized (lowercased, trimmed) username.
func NewUser(username, displayName, passwordHash string) *User {
	return &User{
		Username:     NormalizeUsername(username),
		DisplayName:  displayName,
		PasswordHash: passwordHash,
	}
}

// NormalizeUsername lowercases and trims a handle so uniqueness checks
// are case-insensitive everywhere.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// MemberID implements MemberRef, letting a fully joined user record stand in
// for a bare member id in access-policy checks.
func (u *User) MemberID() string { return u.ID }
