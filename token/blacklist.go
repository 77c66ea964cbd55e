package token

import (
	"context"
	"sync"
	"time"
)

// Blacklist records revoked jti values until the tokens carrying them
// can no longer verify anyway. Implementations must keep live entries:
// an entry may only disappear once its expiry has passed.
type Blacklist interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	Contains(ctx context.Context, jti string) (bool, error)
	PurgeExpired(ctx context.Context) (int, error)
}

// MemoryBlacklist is the single-process Blacklist: a bounded map of
// jti → expiry with a background janitor that evicts only expired
// entries. Reaching the bound triggers an inline purge of expired
// entries; live revocations are never dropped, so under sustained
// revocation pressure the map may temporarily exceed maxEntries rather
// than resurrect a revoked token.
type MemoryBlacklist struct {
	mu         sync.RWMutex
	entries    map[string]time.Time
	maxEntries int
	now        func() time.Time

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryBlacklist creates a memory blacklist bounded at maxEntries
// (0 means unbounded). A sweepInterval > 0 starts a janitor goroutine;
// stop it with Close.
func NewMemoryBlacklist(maxEntries int, sweepInterval time.Duration) *MemoryBlacklist {
	b := &MemoryBlacklist{
		entries:    make(map[string]time.Time),
		maxEntries: maxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}

	if sweepInterval > 0 {
		b.wg.Add(1)
		go b.janitor(sweepInterval)
	}
	return b
}

func (b *MemoryBlacklist) janitor(interval time.Duration) {
	defer b.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.purge()
		case <-b.done:
			return
		}
	}
}

// Add records jti as revoked until expiresAt. Adding an already expired
// jti is a no-op: the token cannot verify, so there is nothing to block.
func (b *MemoryBlacklist) Add(_ context.Context, jti string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !expiresAt.After(b.now()) {
		return nil
	}
	if b.maxEntries > 0 && len(b.entries) >= b.maxEntries {
		b.purgeLocked()
	}
	b.entries[jti] = expiresAt
	return nil
}

// Contains reports whether jti is revoked and still within its expiry.
func (b *MemoryBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	b.mu.RLock()
	expiresAt, ok := b.entries[jti]
	b.mu.RUnlock()

	return ok && expiresAt.After(b.now()), nil
}

// PurgeExpired evicts entries whose expiry has passed and returns how
// many were removed.
func (b *MemoryBlacklist) PurgeExpired(context.Context) (int, error) {
	return b.purge(), nil
}

// Len returns the number of stored entries, expired or not.
func (b *MemoryBlacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Close stops the janitor goroutine. Idempotent.
func (b *MemoryBlacklist) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
}

func (b *MemoryBlacklist) purge() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.purgeLocked()
}

func (b *MemoryBlacklist) purgeLocked() int {
	now := b.now()
	removed := 0
	for jti, expiresAt := range b.entries {
		if !expiresAt.After(now) {
			delete(b.entries, jti)
			removed++
		}
	}
	return removed
}
