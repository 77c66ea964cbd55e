package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limit is the budget applied to one key.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

// Result reports the outcome of a single Check call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// RetryAfter is how long a denied caller should wait before the
	// window resets. Zero when Allowed.
	RetryAfter time.Duration
}

// Store is the counter backend. Incr opens a new window for key when
// none is active (count 1) or increments the active one, returning the
// resulting count and the instant the window resets. Implementations
// must make the read-modify-write atomic per key.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Limiter applies fixed-window limits over a counter [Store].
type Limiter struct {
	store Store
	now   func() time.Time
}

// New creates a Limiter over the given store.
func New(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Check counts one request against key and reports whether it is within
// budget. Denied requests still consume a counter slot; the window
// boundary, not the caller, resets the budget.
func (l *Limiter) Check(ctx context.Context, key string, limit Limit) (Result, error) {
	count, resetAt, err := l.store.Incr(ctx, key, limit.Window)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Allowed: count <= int64(limit.MaxRequests),
		ResetAt: resetAt,
	}
	if remaining := int64(limit.MaxRequests) - count; remaining > 0 {
		res.Remaining = int(remaining)
	}
	if !res.Allowed {
		if wait := resetAt.Sub(l.now()); wait > 0 {
			res.RetryAfter = wait
		} else {
			res.RetryAfter = time.Second
		}
	}
	return res, nil
}

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps counters in a mutex-guarded map. Expired windows
// are dropped opportunistically on access and by PurgeExpired, never
// while still live.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Incr implements [Store]. The whole read-compare-increment sequence
// runs under the store lock, so concurrent callers on the same key
// serialize instead of racing.
func (s *MemoryStore) Incr(_ context.Context, key string, windowSize time.Duration) (int64, time.Time, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(windowSize)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

// PurgeExpired removes counters whose window has fully elapsed and
// returns how many were dropped. Intended for periodic housekeeping;
// correctness does not depend on it.
func (s *MemoryStore) PurgeExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
