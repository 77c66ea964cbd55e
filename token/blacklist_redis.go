package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBlacklistUnavailable indicates the shared revocation backend is
// unreachable. Verification treats this as a failure, never as "not
// revoked".
var ErrBlacklistUnavailable = errors.New("token: blacklist backend unavailable")

// RedisBlacklist shares revocation state across instances. Each entry
// is a key with a TTL equal to the token's remaining lifetime, so Redis
// itself performs the only-expired eviction the memory implementation
// does with its janitor.
type RedisBlacklist struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisBlacklist creates a blacklist on the given client. prefix
// namespaces the keys (default "abl").
func NewRedisBlacklist(client redis.UniversalClient, prefix string) *RedisBlacklist {
	if prefix == "" {
		prefix = "abl"
	}
	return &RedisBlacklist{redis: client, prefix: prefix, now: time.Now}
}

func (b *RedisBlacklist) key(jti string) string {
	return b.prefix + ":" + jti
}

// Add records jti until expiresAt. Already-expired entries are skipped.
func (b *RedisBlacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(b.now())
	if ttl <= 0 {
		return nil
	}

	if err := b.redis.Set(ctx, b.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBlacklistUnavailable, err)
	}
	return nil
}

// Contains reports whether jti is currently revoked.
func (b *RedisBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.redis.Exists(ctx, b.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBlacklistUnavailable, err)
	}
	return n > 0, nil
}

// PurgeExpired is a no-op: Redis evicts entries by TTL on its own.
func (b *RedisBlacklist) PurgeExpired(context.Context) (int, error) {
	return 0, nil
}
