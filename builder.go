package authcore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coursekit/authcore/guard"
	"github.com/coursekit/authcore/internal/audit"
	"github.com/coursekit/authcore/password"
	"github.com/coursekit/authcore/ratelimit"
	"github.com/coursekit/authcore/session"
	"github.com/coursekit/authcore/token"
)

// Builder assembles an [Engine]. Construction is allocation-only; no
// I/O happens until the engine methods run. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users    UserStore
	sessions session.Store
	attempts guard.AttemptStore
	accounts guard.AccountStore
	history  HistoryStore

	sink   AuditSink
	logger *slog.Logger

	built bool
}

// New creates a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis switches the blacklist and rate-limit counters to shared
// Redis-backed stores, required for horizontally scaled deployments.
// Without it both stores are process-local.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the user repository. Required.
func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

// WithSessionStore sets the session repository. Required.
func (b *Builder) WithSessionStore(s session.Store) *Builder {
	b.sessions = s
	return b
}

// WithAttemptStore sets the login-attempt repository. Required.
func (b *Builder) WithAttemptStore(s guard.AttemptStore) *Builder {
	b.attempts = s
	return b
}

// WithAccountStore sets the lock-state repository. Usually the same
// object as the user store. Required.
func (b *Builder) WithAccountStore(s guard.AccountStore) *Builder {
	b.accounts = s
	return b
}

// WithHistoryStore sets the password-history repository. Required.
func (b *Builder) WithHistoryStore(s HistoryStore) *Builder {
	b.history = s
	return b
}

// WithAuditSink sets the destination for security events. Without it
// events are dropped.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the structured logger used for degraded-path
// warnings. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration, wires the subsystems, and returns
// a ready Engine. Call [Engine.Close] on shutdown to stop the audit
// dispatcher and the blacklist janitor.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("authcore: builder already used")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	switch {
	case b.users == nil:
		return nil, errors.New("authcore: user store is required")
	case b.sessions == nil:
		return nil, errors.New("authcore: session store is required")
	case b.attempts == nil:
		return nil, errors.New("authcore: attempt store is required")
	case b.accounts == nil:
		return nil, errors.New("authcore: account store is required")
	case b.history == nil:
		return nil, errors.New("authcore: history store is required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	hasher, err := password.NewHasher(b.config.hashConfig())
	if err != nil {
		return nil, err
	}

	var (
		blacklist token.Blacklist
		closer    interface{ Close() }
	)
	if b.redis != nil {
		blacklist = token.NewRedisBlacklist(b.redis, b.config.Blacklist.RedisPrefix)
	} else {
		mem := token.NewMemoryBlacklist(b.config.Blacklist.MaxEntries, b.config.Blacklist.SweepInterval)
		blacklist = mem
		closer = mem
	}

	tokens, err := token.NewManager(b.config.tokenConfig(), blacklist)
	if err != nil {
		return nil, err
	}

	var counterStore ratelimit.Store
	if b.redis != nil {
		counterStore = ratelimit.NewRedisStore(b.redis, b.config.RateLimit.RedisPrefix)
	} else {
		counterStore = ratelimit.NewMemoryStore()
	}

	sessions, err := session.NewManager(b.sessions, b.config.Session.TTL)
	if err != nil {
		return nil, err
	}

	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    b.config.Audit.Enabled,
		BufferSize: b.config.Audit.BufferSize,
		DropIfFull: b.config.Audit.DropIfFull,
	}, b.sink)

	bruteForce := guard.New(guard.Config{
		MaxFailedAttempts:      b.config.Guard.MaxFailedAttempts,
		DistinctEmailThreshold: b.config.Guard.DistinctEmailThreshold,
		Window:                 b.config.Guard.Window,
		LockDuration:           b.config.Guard.LockDuration,
	}, b.attempts, b.accounts, dispatcher, logger)

	b.built = true
	return &Engine{
		config:          b.config,
		tokens:          tokens,
		blacklist:       blacklist,
		blacklistCloser: closer,
		sessions:        sessions,
		limiter:         ratelimit.New(counterStore),
		guard:           bruteForce,
		hasher:          hasher,
		policy:          b.config.policy(),
		users:           b.users,
		history:         b.history,
		audit:           dispatcher,
		metrics:         NewMetrics(b.config.Metrics.Enabled),
		log:             logger,
		now:             time.Now,
	}, nil
}
