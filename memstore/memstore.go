// Package memstore provides a single in-memory implementation of every
// persistence collaborator the engine needs. It backs tests and
// single-process development setups; production deployments implement
// the interfaces over their own database.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coursekit/authcore"
	"github.com/coursekit/authcore/guard"
	"github.com/coursekit/authcore/session"
)

// Store holds all records behind one mutex. The collaborator interfaces
// have colliding method names, so each is exposed as a view: [Store.Users],
// [Store.Sessions], [Store.Attempts], [Store.Accounts], [Store.History].
// All returned records are copies; callers never share memory with the
// store.
type Store struct {
	mu       sync.Mutex
	users    map[string]*authcore.User // keyed by ID
	emails   map[string]string         // lowercase email -> ID
	sessions map[string]*session.Session
	attempts []guard.Attempt
	history  map[string][]authcore.HistoryEntry // oldest first
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]*authcore.User),
		emails:   make(map[string]string),
		sessions: make(map[string]*session.Session),
		history:  make(map[string][]authcore.HistoryEntry),
	}
}

// AddUser seeds a user record. The email index is case-insensitive.
func (s *Store) AddUser(u *authcore.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[cp.ID] = &cp
	s.emails[strings.ToLower(cp.Email)] = cp.ID
}

// Users returns the authcore.UserStore view.
func (s *Store) Users() authcore.UserStore { return userView{s} }

// Sessions returns the session.Store view.
func (s *Store) Sessions() session.Store { return sessionView{s} }

// Attempts returns the guard.AttemptStore view.
func (s *Store) Attempts() guard.AttemptStore { return attemptView{s} }

// Accounts returns the guard.AccountStore view.
func (s *Store) Accounts() guard.AccountStore { return accountView{s} }

// History returns the authcore.HistoryStore view.
func (s *Store) History() authcore.HistoryStore { return historyView{s} }

type userView struct{ s *Store }

func (v userView) FindByEmail(_ context.Context, email string) (*authcore.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	id, ok := v.s.emails[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return v.s.userCopy(id), nil
}

func (v userView) FindByID(_ context.Context, id string) (*authcore.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.userCopy(id), nil
}

func (v userView) UpdatePasswordHash(_ context.Context, userID, hash string, migrated bool) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	u, ok := v.s.users[userID]
	if !ok {
		return nil
	}
	u.PasswordHash = hash
	if migrated {
		u.PasswordMigratedAt = time.Now()
	}
	return nil
}

func (v userView) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if u, ok := v.s.users[userID]; ok {
		u.LastLoginAt = at
	}
	return nil
}

type sessionView struct{ s *Store }

func (v sessionView) Insert(_ context.Context, sess *session.Session) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	cp := *sess
	v.s.sessions[cp.ID] = &cp
	return nil
}

func (v sessionView) FindByID(_ context.Context, id string) (*session.Session, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if sess, ok := v.s.sessions[id]; ok {
		cp := *sess
		return &cp, nil
	}
	return nil, nil
}

func (v sessionView) SetInactive(_ context.Context, id string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if sess, ok := v.s.sessions[id]; ok {
		sess.IsActive = false
	}
	return nil
}

func (v sessionView) DeactivateAllForUser(_ context.Context, userID string) (int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	n := 0
	for _, sess := range v.s.sessions {
		if sess.UserID == userID && sess.IsActive {
			sess.IsActive = false
			n++
		}
	}
	return n, nil
}

func (v sessionView) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	n := 0
	for id, sess := range v.s.sessions {
		if sess.ExpiresAt.Before(cutoff) {
			delete(v.s.sessions, id)
			n++
		}
	}
	return n, nil
}

type attemptView struct{ s *Store }

func (v attemptView) Insert(_ context.Context, a *guard.Attempt) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.attempts = append(v.s.attempts, *a)
	return nil
}

func (v attemptView) CountFailuresByEmailSince(_ context.Context, email string, since time.Time) (int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	n := 0
	for _, a := range v.s.attempts {
		if !a.Success && a.Email == email && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (v attemptView) DistinctEmailsByIPSince(_ context.Context, ip string, since time.Time) (int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	seen := make(map[string]struct{})
	for _, a := range v.s.attempts {
		if a.IPAddress == ip && !a.CreatedAt.Before(since) {
			seen[a.Email] = struct{}{}
		}
	}
	return len(seen), nil
}

type accountView struct{ s *Store }

func (v accountView) LockState(_ context.Context, email string) (*guard.LockState, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	id, ok := v.s.emails[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	u := v.s.users[id]
	return &guard.LockState{
		UserID:         u.ID,
		LockedUntil:    u.LockedUntil,
		FailedAttempts: u.FailedLoginAttempts,
	}, nil
}

func (v accountView) SetLock(_ context.Context, email string, until time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if id, ok := v.s.emails[strings.ToLower(email)]; ok {
		u := v.s.users[id]
		u.LockedUntil = until
		u.FailedLoginAttempts = 0
	}
	return nil
}

func (v accountView) ClearLockByEmail(_ context.Context, email string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if id, ok := v.s.emails[strings.ToLower(email)]; ok {
		clearLock(v.s.users[id])
	}
	return nil
}

func (v accountView) ClearLockByUserID(_ context.Context, userID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if u, ok := v.s.users[userID]; ok {
		clearLock(u)
	}
	return nil
}

func (v accountView) RecordFailure(_ context.Context, email string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if id, ok := v.s.emails[strings.ToLower(email)]; ok {
		v.s.users[id].FailedLoginAttempts++
	}
	return nil
}

func (v accountView) ResetFailures(_ context.Context, email string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if id, ok := v.s.emails[strings.ToLower(email)]; ok {
		v.s.users[id].FailedLoginAttempts = 0
	}
	return nil
}

type historyView struct{ s *Store }

func (v historyView) Insert(_ context.Context, e *authcore.HistoryEntry) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.history[e.UserID] = append(v.s.history[e.UserID], *e)
	return nil
}

func (v historyView) RecentByUser(_ context.Context, userID string, limit int) ([]authcore.HistoryEntry, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	rows := v.s.history[userID]
	out := make([]authcore.HistoryEntry, 0, limit)
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rows[i])
	}
	return out, nil
}

func (s *Store) userCopy(id string) *authcore.User {
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func clearLock(u *authcore.User) {
	u.LockedUntil = time.Time{}
	u.FailedLoginAttempts = 0
}
