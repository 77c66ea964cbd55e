// Package guard detects and responds to credential-guessing patterns
// that per-key rate limiting alone cannot see: sustained attacks on one
// identity (brute force) and one source spraying many identities
// (credential stuffing).
//
// The analysis reads recent attempt history without locking, so
// concurrent failures near a threshold can transiently over- or
// under-trigger a lockout. That is accepted: this is a best-effort
// control biased toward false positives, not an exact counter.
package guard

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/coursekit/authcore/internal/audit"
)

// Audit event types emitted by the guard.
const (
	EventBruteForceDetected  = "brute_force_detected"
	EventDistributedAttack   = "distributed_attack_detected"
	EventAccountLocked       = "account_locked"
	EventAccountUnlocked     = "account_unlocked"
	LockReasonBruteForce     = "brute_force"
	LockReasonManualOverride = "manual"
)

// Attempt is one append-only login attempt record. Rows are never
// mutated after insert.
type Attempt struct {
	Email         string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	CreatedAt     time.Time
}

// AttemptStore persists the audit trail and answers the two
// rolling-window questions the guard asks.
type AttemptStore interface {
	Insert(ctx context.Context, a *Attempt) error
	CountFailuresByEmailSince(ctx context.Context, email string, since time.Time) (int, error)
	DistinctEmailsByIPSince(ctx context.Context, ip string, since time.Time) (int, error)
}

// LockState is the lock portion of a user record.
type LockState struct {
	UserID         string
	LockedUntil    time.Time
	FailedAttempts int
}

// AccountStore reads and writes the lock fields of user records.
// LockState returns (nil, nil) for an unknown email.
type AccountStore interface {
	LockState(ctx context.Context, email string) (*LockState, error)
	// SetLock sets locked_until and resets the failure counter.
	SetLock(ctx context.Context, email string, until time.Time) error
	ClearLockByEmail(ctx context.Context, email string) error
	ClearLockByUserID(ctx context.Context, userID string) error
	// RecordFailure increments failed_login_attempts; ResetFailures
	// zeroes it after a successful authentication. Both are no-ops for
	// unknown emails.
	RecordFailure(ctx context.Context, email string) error
	ResetFailures(ctx context.Context, email string) error
}

// Config tunes detection thresholds. Zero values fall back to the
// platform defaults in DefaultConfig.
type Config struct {
	// MaxFailedAttempts per email inside Window before lockout.
	MaxFailedAttempts int
	// DistinctEmailThreshold per IP inside Window before a distributed
	// attack is flagged (no automatic lock: the target identity varies).
	DistinctEmailThreshold int
	Window                 time.Duration
	LockDuration           time.Duration
}

// DefaultConfig returns the platform baseline: 5 failures per hour
// lock an account for 30 minutes; 10 distinct targets per IP per hour
// flag a distributed attack.
func DefaultConfig() Config {
	return Config{
		MaxFailedAttempts:      5,
		DistinctEmailThreshold: 10,
		Window:                 time.Hour,
		LockDuration:           30 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = d.MaxFailedAttempts
	}
	if c.DistinctEmailThreshold <= 0 {
		c.DistinctEmailThreshold = d.DistinctEmailThreshold
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.LockDuration <= 0 {
		c.LockDuration = d.LockDuration
	}
	return c
}

// Guard tracks attempts and enforces account lockout.
type Guard struct {
	config   Config
	attempts AttemptStore
	accounts AccountStore
	audit    *audit.Dispatcher
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Guard. dispatcher may be nil (auditing disabled);
// logger may be nil (defaults to slog.Default).
func New(cfg Config, attempts AttemptStore, accounts AccountStore, dispatcher *audit.Dispatcher, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		config:   cfg.withDefaults(),
		attempts: attempts,
		accounts: accounts,
		audit:    dispatcher,
		log:      logger,
		now:      time.Now,
	}
}

// TrackAttempt appends a LoginAttempt row and, on failure, runs the
// suspicious-activity analysis. Persistence failures are logged and
// swallowed: attempt tracking must never abort the login flow it
// observes.
func (g *Guard) TrackAttempt(ctx context.Context, email string, success bool, ip, userAgent, reason string) {
	attempt := &Attempt{
		Email:         email,
		IPAddress:     ip,
		UserAgent:     userAgent,
		Success:       success,
		FailureReason: reason,
		CreatedAt:     g.now(),
	}
	if err := g.attempts.Insert(ctx, attempt); err != nil {
		g.log.Warn("login attempt insert failed", "error", err)
		return
	}

	if success {
		if err := g.accounts.ResetFailures(ctx, email); err != nil {
			g.log.Warn("failure counter reset failed", "error", err)
		}
		return
	}

	if err := g.accounts.RecordFailure(ctx, email); err != nil {
		g.log.Warn("failure counter update failed", "error", err)
	}
	g.CheckSuspiciousActivity(ctx, email, ip)
}

// CheckSuspiciousActivity analyzes the trailing window for email and
// ip. Crossing the per-email failure threshold classifies a brute-force
// attack and locks the account; crossing the distinct-email threshold
// classifies a distributed/credential-stuffing attack and emits a
// critical event without locking.
func (g *Guard) CheckSuspiciousActivity(ctx context.Context, email, ip string) {
	since := g.now().Add(-g.config.Window)

	failures, err := g.attempts.CountFailuresByEmailSince(ctx, email, since)
	if err != nil {
		g.log.Warn("failure count query failed", "error", err)
	} else if failures >= g.config.MaxFailedAttempts {
		g.emit(ctx, audit.Event{
			EventType: EventBruteForceDetected,
			Severity:  audit.SeverityCritical,
			IP:        ip,
			Metadata: map[string]string{
				"email":           email,
				"failed_attempts": strconv.Itoa(failures),
				"window":          g.config.Window.String(),
			},
		})
		if err := g.LockAccount(ctx, email, LockReasonBruteForce); err != nil {
			g.log.Warn("account lock failed", "error", err)
		}
	}

	if ip == "" {
		return
	}
	targets, err := g.attempts.DistinctEmailsByIPSince(ctx, ip, since)
	if err != nil {
		g.log.Warn("distinct target query failed", "error", err)
		return
	}
	if targets >= g.config.DistinctEmailThreshold {
		g.emit(ctx, audit.Event{
			EventType: EventDistributedAttack,
			Severity:  audit.SeverityCritical,
			IP:        ip,
			Metadata: map[string]string{
				"distinct_targets": strconv.Itoa(targets),
				"window":           g.config.Window.String(),
			},
		})
	}
}

// LockAccount sets locked_until and resets the failure counter.
// Locking an unknown email is a silent no-op so callers cannot be used
// as an account-existence oracle.
func (g *Guard) LockAccount(ctx context.Context, email, reason string) error {
	state, err := g.accounts.LockState(ctx, email)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	until := g.now().Add(g.config.LockDuration)
	if err := g.accounts.SetLock(ctx, email, until); err != nil {
		return err
	}

	g.emit(ctx, audit.Event{
		EventType: EventAccountLocked,
		Severity:  audit.SeverityHigh,
		UserID:    state.UserID,
		Metadata: map[string]string{
			"reason":       reason,
			"locked_until": until.UTC().Format(time.RFC3339),
		},
	})
	return nil
}

// UnlockAccount clears the lock fields. Administrative use.
func (g *Guard) UnlockAccount(ctx context.Context, userID string) error {
	if err := g.accounts.ClearLockByUserID(ctx, userID); err != nil {
		return err
	}

	g.emit(ctx, audit.Event{
		EventType: EventAccountUnlocked,
		Severity:  audit.SeverityMedium,
		UserID:    userID,
		Metadata:  map[string]string{"reason": LockReasonManualOverride},
	})
	return nil
}

// IsLocked reports whether the account is currently locked. A lock
// whose expiry has passed is cleared as a side effect before returning
// false (lazy unlock), so no background job is needed.
func (g *Guard) IsLocked(ctx context.Context, email string) (bool, error) {
	state, err := g.accounts.LockState(ctx, email)
	if err != nil {
		return false, err
	}
	if state == nil || state.LockedUntil.IsZero() {
		return false, nil
	}

	if state.LockedUntil.After(g.now()) {
		return true, nil
	}

	if err := g.accounts.ClearLockByEmail(ctx, email); err != nil {
		return false, err
	}
	return false, nil
}

// LockRemaining returns how long the account stays locked, or zero when
// it is not locked. Used to build retry-after hints for legitimate
// clients.
func (g *Guard) LockRemaining(ctx context.Context, email string) (time.Duration, error) {
	state, err := g.accounts.LockState(ctx, email)
	if err != nil {
		return 0, err
	}
	if state == nil {
		return 0, nil
	}
	if remaining := state.LockedUntil.Sub(g.now()); remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

// LockDuration exposes the configured lock length so callers can build
// retry-after hints.
func (g *Guard) LockDuration() time.Duration {
	return g.config.LockDuration
}

func (g *Guard) emit(ctx context.Context, event audit.Event) {
	g.audit.Emit(ctx, event)
}
