package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coursekit/authcore/autherr"
	"github.com/coursekit/authcore/device"
)

// Manager owns session lifecycle over a [Store].
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager creates a Manager issuing sessions valid for ttl.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session: ttl must be positive")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Create opens a new active session for userID bound to the client
// context. One user may hold any number of concurrent sessions.
func (m *Manager) Create(ctx context.Context, userID, ip, userAgent string) (*Session, error) {
	now := m.now()
	s := &Session{
		ID:                uuid.NewString(),
		UserID:            userID,
		CreatedAt:         now,
		ExpiresAt:         now.Add(m.ttl),
		IPAddress:         ip,
		UserAgent:         userAgent,
		DeviceFingerprint: device.Fingerprint(userAgent, ip),
		IsActive:          true,
	}

	if err := m.store.Insert(ctx, s); err != nil {
		return nil, autherr.Wrap(autherr.CodeSessionCreationFailed, "session insert failed", err)
	}
	return s, nil
}

// Validate returns the session only if it is active and unexpired.
// A found-but-expired session is invalidated as a side effect (lazy
// expiry) and reported as (nil, nil), same as an unknown or inactive
// one. Errors are infrastructure failures only.
func (m *Manager) Validate(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil || !s.IsActive {
		return nil, nil
	}

	if !m.now().Before(s.ExpiresAt) {
		if err := m.store.SetInactive(ctx, id); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return s, nil
}

// Invalidate soft-revokes the session. The row is kept so the audit
// trail survives logout.
func (m *Manager) Invalidate(ctx context.Context, id string) error {
	return m.store.SetInactive(ctx, id)
}

// InvalidateAllForUser soft-revokes every session of a user, e.g. after
// a password change or a detected compromise.
func (m *Manager) InvalidateAllForUser(ctx context.Context, userID string) (int, error) {
	return m.store.DeactivateAllForUser(ctx, userID)
}

// CleanupExpired bulk-removes rows past their expiry. Meant for a
// periodic job, not the request path.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	return m.store.DeleteExpiredBefore(ctx, m.now())
}

// TTL exposes the configured session lifetime (the cookie layer needs
// it to align max-age).
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
