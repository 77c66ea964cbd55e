package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/coursekit/authcore/password"
	"github.com/coursekit/authcore/token"
)

// Config holds every tunable of the security core. Construct it with
// DefaultConfig or ConfigFromEnv, adjust, and hand it to the Builder;
// it is treated as immutable after Build.
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	Password  PasswordConfig
	Policy    PolicyConfig
	LoginRate LoginRateConfig
	Guard     GuardConfig
	Blacklist BlacklistConfig
	RateLimit RateLimitStoreConfig
	Device    DeviceConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// JWTConfig configures credential signing.
type JWTConfig struct {
	// SigningMethod is "hs256" or "ed25519".
	SigningMethod string `env:"AUTHCORE_JWT_SIGNING_METHOD"`
	// PrivateKey is the HS256 shared secret or the Ed25519 private key.
	PrivateKey []byte `env:"AUTHCORE_JWT_PRIVATE_KEY,unset"`
	// PublicKey is the Ed25519 verify key. Unused for HS256.
	PublicKey []byte        `env:"AUTHCORE_JWT_PUBLIC_KEY"`
	Issuer    string        `env:"AUTHCORE_JWT_ISSUER"`
	Audience  string        `env:"AUTHCORE_JWT_AUDIENCE"`
	AccessTTL time.Duration `env:"AUTHCORE_JWT_ACCESS_TTL"`
	// RefreshTTL also bounds how long a revoked-but-undecodable jti is
	// remembered.
	RefreshTTL time.Duration `env:"AUTHCORE_JWT_REFRESH_TTL"`
	Leeway     time.Duration `env:"AUTHCORE_JWT_LEEWAY"`
}

// SessionConfig configures session lifetime.
type SessionConfig struct {
	TTL time.Duration `env:"AUTHCORE_SESSION_TTL"`
}

// PasswordConfig carries the Argon2id cost parameters and the
// migration switch.
type PasswordConfig struct {
	Memory      uint32 `env:"AUTHCORE_PASSWORD_MEMORY_KB"`
	Time        uint32 `env:"AUTHCORE_PASSWORD_TIME"`
	Parallelism uint8  `env:"AUTHCORE_PASSWORD_PARALLELISM"`
	SaltLength  uint32 `env:"AUTHCORE_PASSWORD_SALT_LENGTH"`
	KeyLength   uint32 `env:"AUTHCORE_PASSWORD_KEY_LENGTH"`
	// UpgradeOnLogin re-hashes under current parameters whenever a
	// login proves the plaintext and the stored digest is weaker or
	// legacy.
	UpgradeOnLogin bool `env:"AUTHCORE_PASSWORD_UPGRADE_ON_LOGIN"`
}

// PolicyConfig mirrors password.Policy for env-based construction.
type PolicyConfig struct {
	MinLength         int  `env:"AUTHCORE_POLICY_MIN_LENGTH"`
	RequireUppercase  bool `env:"AUTHCORE_POLICY_REQUIRE_UPPERCASE"`
	RequireLowercase  bool `env:"AUTHCORE_POLICY_REQUIRE_LOWERCASE"`
	RequireDigit      bool `env:"AUTHCORE_POLICY_REQUIRE_DIGIT"`
	RequireSymbol     bool `env:"AUTHCORE_POLICY_REQUIRE_SYMBOL"`
	ComplexityScore   int  `env:"AUTHCORE_POLICY_COMPLEXITY_SCORE"`
	PreventReuseCount int  `env:"AUTHCORE_POLICY_PREVENT_REUSE_COUNT"`
}

// LoginRateConfig is the fixed-window budget applied per login email.
type LoginRateConfig struct {
	MaxRequests int           `env:"AUTHCORE_LOGIN_RATE_MAX"`
	Window      time.Duration `env:"AUTHCORE_LOGIN_RATE_WINDOW"`
}

// GuardConfig tunes brute-force detection.
type GuardConfig struct {
	MaxFailedAttempts      int           `env:"AUTHCORE_GUARD_MAX_FAILED_ATTEMPTS"`
	DistinctEmailThreshold int           `env:"AUTHCORE_GUARD_DISTINCT_EMAIL_THRESHOLD"`
	Window                 time.Duration `env:"AUTHCORE_GUARD_WINDOW"`
	LockDuration           time.Duration `env:"AUTHCORE_GUARD_LOCK_DURATION"`
}

// BlacklistConfig tunes revocation storage.
type BlacklistConfig struct {
	// MaxEntries bounds the in-memory store (0 = unbounded). Ignored
	// when Redis is supplied.
	MaxEntries int `env:"AUTHCORE_BLACKLIST_MAX_ENTRIES"`
	// SweepInterval is the janitor cadence for the in-memory store.
	SweepInterval time.Duration `env:"AUTHCORE_BLACKLIST_SWEEP_INTERVAL"`
	RedisPrefix   string        `env:"AUTHCORE_BLACKLIST_REDIS_PREFIX"`
}

// RateLimitStoreConfig namespaces the shared counter keys.
type RateLimitStoreConfig struct {
	RedisPrefix string `env:"AUTHCORE_RATELIMIT_REDIS_PREFIX"`
}

// DeviceConfig controls device binding enforcement during
// authentication.
type DeviceConfig struct {
	// ValidateBinding makes Authenticate compare the caller's
	// fingerprint against the one the credential was bound to.
	ValidateBinding bool `env:"AUTHCORE_DEVICE_VALIDATE_BINDING"`
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"AUTHCORE_AUDIT_ENABLED"`
	BufferSize int  `env:"AUTHCORE_AUDIT_BUFFER_SIZE"`
	DropIfFull bool `env:"AUTHCORE_AUDIT_DROP_IF_FULL"`
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool `env:"AUTHCORE_METRICS_ENABLED"`
}

// DefaultConfig returns the platform baseline. Signing key material has
// no default and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			Issuer:        "authcore",
			Audience:      "platform",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			TTL: 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Policy: PolicyConfig{
			MinLength:         8,
			RequireUppercase:  true,
			RequireLowercase:  true,
			RequireDigit:      true,
			RequireSymbol:     true,
			ComplexityScore:   3,
			PreventReuseCount: 5,
		},
		LoginRate: LoginRateConfig{
			MaxRequests: 10,
			Window:      15 * time.Minute,
		},
		Guard: GuardConfig{
			MaxFailedAttempts:      5,
			DistinctEmailThreshold: 10,
			Window:                 time.Hour,
			LockDuration:           30 * time.Minute,
		},
		Blacklist: BlacklistConfig{
			MaxEntries:    100_000,
			SweepInterval: 5 * time.Minute,
			RedisPrefix:   "abl",
		},
		RateLimit: RateLimitStoreConfig{
			RedisPrefix: "arl",
		},
		Device: DeviceConfig{
			ValidateBinding: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// ConfigFromEnv overlays environment variables onto DefaultConfig.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("authcore: parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency before Build.
func (c *Config) Validate() error {
	if len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0 {
		return errors.New("authcore: JWT key material is required")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("authcore: access TTL must be positive")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("authcore: refresh TTL must not be shorter than access TTL")
	}
	if c.Session.TTL <= 0 {
		return errors.New("authcore: session TTL must be positive")
	}
	if c.LoginRate.MaxRequests <= 0 || c.LoginRate.Window <= 0 {
		return errors.New("authcore: login rate limit must be positive")
	}
	if c.Policy.ComplexityScore < 0 || c.Policy.ComplexityScore > 5 {
		return errors.New("authcore: complexity score must be within [0,5]")
	}
	return nil
}

func (c *Config) hashConfig() password.HashConfig {
	return password.HashConfig{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}

func (c *Config) policy() password.Policy {
	return password.Policy{
		MinLength:         c.Policy.MinLength,
		RequireUppercase:  c.Policy.RequireUppercase,
		RequireLowercase:  c.Policy.RequireLowercase,
		RequireDigit:      c.Policy.RequireDigit,
		RequireSymbol:     c.Policy.RequireSymbol,
		ComplexityScore:   c.Policy.ComplexityScore,
		PreventReuseCount: c.Policy.PreventReuseCount,
	}
}

func (c *Config) tokenConfig() token.Config {
	return token.Config{
		SigningMethod: token.SigningMethod(c.JWT.SigningMethod),
		PrivateKey:    c.JWT.PrivateKey,
		PublicKey:     c.JWT.PublicKey,
		Issuer:        c.JWT.Issuer,
		Audience:      c.JWT.Audience,
		Leeway:        c.JWT.Leeway,
		RevocationTTL: c.JWT.RefreshTTL,
	}
}
