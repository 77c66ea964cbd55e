package token

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryBlacklistAddContains(t *testing.T) {
	b := NewMemoryBlacklist(0, 0)
	defer b.Close()
	ctx := context.Background()

	if err := b.Add(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	revoked, err := b.Contains(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected jti-1 revoked, got %v, %v", revoked, err)
	}
	revoked, err = b.Contains(ctx, "jti-2")
	if err != nil || revoked {
		t.Fatalf("expected jti-2 not revoked, got %v, %v", revoked, err)
	}
}

func TestMemoryBlacklistEntryExpires(t *testing.T) {
	b := NewMemoryBlacklist(0, 0)
	defer b.Close()
	ctx := context.Background()

	base := time.Now()
	if err := b.Add(ctx, "jti-1", base.Add(time.Minute)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	b.now = func() time.Time { return base.Add(2 * time.Minute) }
	revoked, err := b.Contains(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected expired entry to read as not revoked, got %v, %v", revoked, err)
	}

	removed, err := b.PurgeExpired(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 purged entry, got %d, %v", removed, err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty blacklist, got %d entries", b.Len())
	}
}

func TestMemoryBlacklistSkipsAlreadyExpired(t *testing.T) {
	b := NewMemoryBlacklist(0, 0)
	defer b.Close()

	if err := b.Add(context.Background(), "jti-1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if b.Len() != 0 {
		t.Fatal("expected already-expired entry to be skipped")
	}
}

func TestMemoryBlacklistBoundPurgesOnlyExpired(t *testing.T) {
	b := NewMemoryBlacklist(3, 0)
	defer b.Close()
	ctx := context.Background()

	base := time.Now()
	b.now = func() time.Time { return base }

	// Two entries that will expire, one that stays live.
	if err := b.Add(ctx, "dead-1", base.Add(time.Second)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := b.Add(ctx, "dead-2", base.Add(time.Second)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := b.Add(ctx, "live-1", base.Add(time.Hour)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// At the bound with the dead entries expired, the next Add evicts
	// only them.
	b.now = func() time.Time { return base.Add(time.Minute) }
	if err := b.Add(ctx, "live-2", base.Add(time.Hour)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	for _, jti := range []string{"live-1", "live-2"} {
		revoked, err := b.Contains(ctx, jti)
		if err != nil || !revoked {
			t.Fatalf("expected %s still revoked after eviction, got %v, %v", jti, revoked, err)
		}
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", b.Len())
	}
}

func TestMemoryBlacklistNeverDropsLiveEntries(t *testing.T) {
	b := NewMemoryBlacklist(5, 0)
	defer b.Close()
	ctx := context.Background()

	// All entries live: the bound may be exceeded, but nothing is lost.
	for i := 0; i < 10; i++ {
		if err := b.Add(ctx, fmt.Sprintf("jti-%d", i), time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		revoked, err := b.Contains(ctx, fmt.Sprintf("jti-%d", i))
		if err != nil || !revoked {
			t.Fatalf("live revocation jti-%d was dropped", i)
		}
	}
}

func TestMemoryBlacklistCloseIdempotent(t *testing.T) {
	b := NewMemoryBlacklist(0, time.Minute)
	b.Close()
	b.Close()
}

func TestRedisBlacklist(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := NewRedisBlacklist(client, "")
	ctx := context.Background()

	if err := b.Add(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	revoked, err := b.Contains(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected jti-1 revoked, got %v, %v", revoked, err)
	}

	mr.FastForward(2 * time.Minute)
	revoked, err = b.Contains(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected entry evicted by TTL, got %v, %v", revoked, err)
	}

	// Already expired: nothing written.
	if err := b.Add(ctx, "jti-2", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	revoked, err = b.Contains(ctx, "jti-2")
	if err != nil || revoked {
		t.Fatalf("expected no entry for already-expired jti, got %v, %v", revoked, err)
	}
}
