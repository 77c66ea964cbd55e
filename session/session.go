// Package session tracks which device/browser contexts are currently
// authenticated for a user, independent of any single credential's
// lifetime. Records live in a persistence collaborator behind [Store];
// this package owns the lifecycle rules, not the storage.
package session

import (
	"context"
	"time"
)

// Session is one authenticated device/browser context. A record is
// mutated only to flip IsActive to false; everything else is immutable
// after creation.
type Session struct {
	ID                string
	UserID            string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	IsActive          bool
}

// Usable reports whether the session may still authenticate requests
// at the given instant.
func (s *Session) Usable(now time.Time) bool {
	return s != nil && s.IsActive && now.Before(s.ExpiresAt)
}

// Store is the persistence collaborator. FindByID returns (nil, nil)
// for an unknown ID; infrastructure failures are errors.
type Store interface {
	Insert(ctx context.Context, s *Session) error
	FindByID(ctx context.Context, id string) (*Session, error)
	// SetInactive flips IsActive to false, keeping the row for audit.
	SetInactive(ctx context.Context, id string) error
	// DeactivateAllForUser soft-revokes every active session of a user
	// and returns how many were affected.
	DeactivateAllForUser(ctx context.Context, userID string) (int, error)
	// DeleteExpiredBefore removes rows whose ExpiresAt precedes cutoff.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error)
}
