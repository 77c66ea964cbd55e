package authcore

import (
	"context"
	"time"

	"github.com/coursekit/authcore/session"
)

// User is the user record as seen by the security core. The platform's
// full user model is wider; only these fields matter here.
type User struct {
	ID           string
	Email        string
	Role         string
	PasswordHash string

	// Lock state, owned by the brute-force guard.
	FailedLoginAttempts int
	LockedUntil         time.Time

	LastLoginAt time.Time
	// PasswordMigratedAt records when a legacy bcrypt digest was
	// replaced by the current scheme. Zero for accounts created on the
	// current scheme.
	PasswordMigratedAt time.Time
}

// UserStore is the persistence collaborator for user records. Lookups
// return (nil, nil) for unknown users; errors are infrastructure
// failures only.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	// UpdatePasswordHash replaces the stored digest; migrated marks the
	// record as moved off the legacy scheme.
	UpdatePasswordHash(ctx context.Context, userID, hash string, migrated bool) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// HistoryEntry is one append-only password history row.
type HistoryEntry struct {
	UserID       string
	PasswordHash string
	CreatedAt    time.Time
}

// HistoryStore persists password history for reuse prevention.
// RecentByUser returns entries newest first, at most limit.
type HistoryStore interface {
	Insert(ctx context.Context, e *HistoryEntry) error
	RecentByUser(ctx context.Context, userID string, limit int) ([]HistoryEntry, error)
}

// Identity is the authenticated principal injected into request
// handling after a credential passes verification.
type Identity struct {
	UserID    string
	Role      string
	SessionID string
}

// LoginResult is returned by [Engine.Login] and [Engine.Refresh].
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	Session      *session.Session
}
