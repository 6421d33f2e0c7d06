package domain

import (
	"context"
	"strings"
	"time"
)

// ScopeAuth is the only session scope issued: full access to the owner's data.
const ScopeAuth = "auth"

// User represents a registered user of the application.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Sessions     []Session
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is one live login: a signed token and the scope it was issued for.
type Session struct {
	Scope string `json:"scope" bson:"scope"`
	Token string `json:"token" bson:"token"`
}

// NormalizeEmail returns the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserRepository defines persistence operations for users.
// Emails passed in are expected to be normalized already.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	// Delete removes the user together with the records it owns.
	Delete(ctx context.Context, id string) error
}

// SessionLedger is the authority on which tokens are still live for a user.
// A token whose signature verifies is still rejected unless the ledger holds it.
//
// Implementations must mutate the collection with single atomic operations
// (append / remove-matching), never by loading the user, editing the slice
// and writing it back: two concurrent logins for the same user must both
// survive.
type SessionLedger interface {
	// Record appends a session. Returns ErrNotFound if the user does not exist.
	Record(ctx context.Context, userID string, session Session) error
	// IsLive reports whether token is present, byte for byte, in the user's sessions.
	IsLive(ctx context.Context, userID, token string) (bool, error)
	// Revoke removes the session holding token. Removing an absent token is a no-op.
	Revoke(ctx context.Context, userID, token string) error
	// RevokeAll empties the user's sessions.
	RevokeAll(ctx context.Context, userID string) error
	// RevokeOthers removes every session except the one holding keepToken,
	// in one atomic step. keepToken is never absent from the ledger while it runs.
	RevokeOthers(ctx context.Context, userID, keepToken string) error
}
