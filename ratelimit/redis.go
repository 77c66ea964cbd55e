package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable indicates the shared counter backend is unreachable.
var ErrStoreUnavailable = errors.New("ratelimit: counter store unavailable")

// RedisStore keeps fixed-window counters in Redis so every instance of
// a horizontally scaled deployment shares the same budget. INCR is
// atomic server-side, which gives the same no-undercount guarantee the
// memory store gets from its lock.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a counter store on the given client. prefix
// namespaces the keys (default "arl").
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "arl"
	}
	return &RedisStore{redis: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

// Incr implements [Store]. The TTL is set only on the first hit of a
// window, so the key expires at a fixed boundary regardless of later
// traffic.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	k := s.key(key)

	count, err := s.redis.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if count == 1 {
		if err := s.redis.Expire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return count, s.now().Add(window), nil
	}

	ttl, err := s.redis.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ttl < 0 {
		// Counter exists but carries no TTL (e.g. Expire raced a crash).
		// Re-arm the window rather than leaving an immortal counter.
		if err := s.redis.Expire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		ttl = window
	}

	return count, s.now().Add(ttl), nil
}
