package authcore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coursekit/authcore/autherr"
	"github.com/coursekit/authcore/device"
	"github.com/coursekit/authcore/guard"
	"github.com/coursekit/authcore/internal/audit"
	"github.com/coursekit/authcore/password"
	"github.com/coursekit/authcore/ratelimit"
	"github.com/coursekit/authcore/session"
	"github.com/coursekit/authcore/token"
)

// Failure reasons recorded on login-attempt rows.
const (
	reasonAccountLocked   = "account_locked"
	reasonRateLimited     = "rate_limited"
	reasonUnknownUser     = "user_not_found"
	reasonInvalidPassword = "invalid_password"
)

// Engine orchestrates the security core. Create one per process via
// [Builder.Build] and share it across request handlers.
type Engine struct {
	config          Config
	tokens          *token.Manager
	blacklist       token.Blacklist
	blacklistCloser interface{ Close() }
	sessions        *session.Manager
	limiter         *ratelimit.Limiter
	guard           *guard.Guard
	hasher          *password.Hasher
	policy          password.Policy
	users           UserStore
	history         HistoryStore
	audit           *audit.Dispatcher
	metrics         *Metrics
	log             *slog.Logger
	now             func() time.Time
}

// Close stops the audit dispatcher and the blacklist janitor.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.blacklistCloser != nil {
		e.blacklistCloser.Close()
	}
}

// Login authenticates email+password and, on success, opens a session
// and issues an access/refresh credential pair bound to it and to the
// caller's device fingerprint (taken from ctx via [WithClientIP] and
// [WithUserAgent]).
//
// Every outcome, including lockout and rate-limit rejections, is
// recorded as a login attempt. Credential failures surface the uniform
// INVALID_CREDENTIALS code regardless of whether the email exists.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)
	userAgent := userAgentFromContext(ctx)

	locked, err := e.guard.IsLocked(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("authcore: lock check: %w", err)
	}
	if locked {
		e.metrics.Inc(MetricLoginLockedOut)
		e.guard.TrackAttempt(ctx, email, false, ip, userAgent, reasonAccountLocked)
		remaining, err := e.guard.LockRemaining(ctx, email)
		if err != nil {
			remaining = e.guard.LockDuration()
		}
		return nil, autherr.Retry(autherr.CodeAccountLocked, "account temporarily locked", remaining)
	}

	rate, err := e.limiter.Check(ctx, "login:"+email, ratelimit.Limit{
		MaxRequests: e.config.LoginRate.MaxRequests,
		Window:      e.config.LoginRate.Window,
	})
	if err != nil {
		// Fail closed: an unreachable counter store must not grant
		// unmetered attempts.
		return nil, fmt.Errorf("authcore: rate limit check: %w", err)
	}
	if !rate.Allowed {
		e.metrics.Inc(MetricLoginRateLimited)
		e.guard.TrackAttempt(ctx, email, false, ip, userAgent, reasonRateLimited)
		e.emit(ctx, audit.Event{
			EventType: "login_rate_limited",
			Severity:  audit.SeverityMedium,
			IP:        ip,
			Metadata:  map[string]string{"email": email},
		})
		return nil, autherr.Retry(autherr.CodeRateLimitExceeded, "too many login attempts", rate.RetryAfter)
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("authcore: user lookup: %w", err)
	}
	if user == nil {
		e.metrics.Inc(MetricLoginFailure)
		e.guard.TrackAttempt(ctx, email, false, ip, userAgent, reasonUnknownUser)
		return nil, autherr.E(autherr.CodeInvalidCredentials, "authentication failed")
	}

	ok, err := e.verifyPassword(pass, user.PasswordHash)
	if err != nil {
		// Corrupt digest: deny without revealing which record failed.
		e.log.Warn("stored password digest unreadable", "user_id", user.ID, "error", err)
		ok = false
	}
	if !ok {
		e.metrics.Inc(MetricLoginFailure)
		e.guard.TrackAttempt(ctx, email, false, ip, userAgent, reasonInvalidPassword)
		return nil, autherr.E(autherr.CodeInvalidCredentials, "authentication failed")
	}

	sess, err := e.sessions.Create(ctx, user.ID, ip, userAgent)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricSessionCreated)

	access, err := e.tokens.Generate(token.Subject{UserID: user.ID, Role: user.Role},
		e.config.JWT.AccessTTL, token.IssueOptions{
			SessionID:   sess.ID,
			Fingerprint: sess.DeviceFingerprint,
		})
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.GenerateRefresh(user.ID, sess.ID, 1, e.config.JWT.RefreshTTL)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricTokenIssued)

	e.maybeUpgradeHash(ctx, user, pass)

	if err := e.users.UpdateLastLogin(ctx, user.ID, e.now()); err != nil {
		// Non-critical path: the login still succeeds.
		e.log.Warn("last login update failed", "user_id", user.ID, "error", err)
	}

	e.guard.TrackAttempt(ctx, email, true, ip, userAgent, "")
	e.metrics.Inc(MetricLoginSuccess)
	e.emit(ctx, audit.Event{
		EventType: "login_success",
		Severity:  audit.SeverityLow,
		UserID:    user.ID,
		IP:        ip,
		Metadata:  map[string]string{"session_id": sess.ID},
	})

	return &LoginResult{AccessToken: access, RefreshToken: refresh, Session: sess}, nil
}

// Authenticate verifies an access credential and confirms its bound
// session is still active. The returned coded error distinguishes
// failure modes internally; HTTP-facing callers must collapse them into
// one generic response.
func (e *Engine) Authenticate(ctx context.Context, tokenStr string) (*Identity, error) {
	opts := token.VerifyOptions{ExpectType: token.TypeAccess}
	if e.config.Device.ValidateBinding {
		ip := clientIPFromContext(ctx)
		userAgent := userAgentFromContext(ctx)
		if ip != "" || userAgent != "" {
			opts.Fingerprint = device.Fingerprint(userAgent, ip)
		}
	}

	claims, err := e.tokens.Verify(ctx, tokenStr, opts)
	if err != nil {
		if autherr.HasCode(err, autherr.CodeTokenDeviceMismatch) {
			e.metrics.Inc(MetricTokenDeviceMismatch)
		} else {
			e.metrics.Inc(MetricTokenRejected)
		}
		return nil, err
	}

	if claims.SessionID != "" {
		sess, err := e.sessions.Validate(ctx, claims.SessionID)
		if err != nil {
			return nil, fmt.Errorf("authcore: session lookup: %w", err)
		}
		if sess == nil {
			e.metrics.Inc(MetricTokenRejected)
			return nil, autherr.E(autherr.CodeTokenNotActive, "session is no longer active")
		}
	}

	return &Identity{UserID: claims.UserID, Role: claims.Role, SessionID: claims.SessionID}, nil
}

// Refresh rotates a refresh credential: the presented token is revoked,
// its session re-validated, and a new access/refresh pair issued with
// the rotation version advanced.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := e.tokens.Verify(ctx, refreshToken, token.VerifyOptions{ExpectType: token.TypeRefresh})
	if err != nil {
		e.metrics.Inc(MetricTokenRejected)
		return nil, err
	}

	sess, err := e.sessions.Validate(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("authcore: session lookup: %w", err)
	}
	if sess == nil {
		e.metrics.Inc(MetricTokenRejected)
		return nil, autherr.E(autherr.CodeTokenNotActive, "session is no longer active")
	}

	user, err := e.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("authcore: user lookup: %w", err)
	}
	if user == nil {
		return nil, autherr.E(autherr.CodeInvalidCredentials, "authentication failed")
	}

	// Revoke before reissuing so a replayed old refresh token fails.
	if err := e.tokens.Revoke(ctx, refreshToken); err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricTokenRevoked)

	access, err := e.tokens.Generate(token.Subject{UserID: user.ID, Role: user.Role},
		e.config.JWT.AccessTTL, token.IssueOptions{
			SessionID:   sess.ID,
			Fingerprint: sess.DeviceFingerprint,
		})
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.GenerateRefresh(user.ID, sess.ID, claims.Version+1, e.config.JWT.RefreshTTL)
	if err != nil {
		return nil, err
	}
	e.metrics.Inc(MetricTokenIssued)

	return &LoginResult{AccessToken: access, RefreshToken: refresh, Session: sess}, nil
}

// Logout revokes the presented credential and soft-invalidates its
// bound session. The credential does not need to verify: an expired or
// damaged-but-decodable token is still revoked.
func (e *Engine) Logout(ctx context.Context, tokenStr string) error {
	if err := e.tokens.Revoke(ctx, tokenStr); err != nil {
		return err
	}
	e.metrics.Inc(MetricTokenRevoked)

	claims, err := e.tokens.Decode(tokenStr)
	if err == nil && claims.SessionID != "" {
		if err := e.sessions.Invalidate(ctx, claims.SessionID); err != nil {
			e.log.Warn("session invalidation failed", "session_id", claims.SessionID, "error", err)
		} else {
			e.metrics.Inc(MetricSessionInvalidated)
		}
	}

	e.emit(ctx, audit.Event{
		EventType: "logout",
		Severity:  audit.SeverityLow,
		UserID:    claimsUserID(claims),
	})
	return nil
}

// RevokeToken blacklists a credential without touching its session.
func (e *Engine) RevokeToken(ctx context.Context, tokenStr string) error {
	if err := e.tokens.Revoke(ctx, tokenStr); err != nil {
		return err
	}
	e.metrics.Inc(MetricTokenRevoked)
	return nil
}

// UnlockAccount clears a lock ahead of its natural expiry.
// Administrative use.
func (e *Engine) UnlockAccount(ctx context.Context, userID string) error {
	if err := e.guard.UnlockAccount(ctx, userID); err != nil {
		return err
	}
	e.metrics.Inc(MetricAccountUnlocked)
	return nil
}

// InvalidateUserSessions soft-revokes every session of a user, e.g.
// after a detected compromise.
func (e *Engine) InvalidateUserSessions(ctx context.Context, userID string) (int, error) {
	n, err := e.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	e.metrics.Add(MetricSessionInvalidated, uint64(n))
	return n, nil
}

// CleanupExpired removes expired session rows and purges dead blacklist
// entries. Run it periodically, off the request path.
func (e *Engine) CleanupExpired(ctx context.Context) (sessions int, blacklisted int, err error) {
	sessions, err = e.sessions.CleanupExpired(ctx)
	if err != nil {
		return 0, 0, err
	}
	e.metrics.Add(MetricSessionsCleaned, uint64(sessions))

	blacklisted, err = e.blacklist.PurgeExpired(ctx)
	if err != nil {
		return sessions, 0, err
	}
	return sessions, blacklisted, nil
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were shed under pressure.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func (e *Engine) verifyPassword(pass, digest string) (bool, error) {
	if password.IsLegacy(digest) {
		return e.hasher.VerifyLegacy(pass, digest)
	}
	return e.hasher.Verify(pass, digest)
}

// maybeUpgradeHash re-hashes the proven plaintext when the stored
// digest is legacy or under-parameterized. Best-effort: failures leave
// the old digest in place.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user *User, pass string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}

	if password.IsLegacy(user.PasswordHash) {
		if err := e.MigrateLegacyPassword(ctx, user.ID, pass); err != nil {
			e.log.Warn("legacy hash migration failed", "user_id", user.ID, "error", err)
		}
		return
	}

	weak, err := e.hasher.NeedsRehash(user.PasswordHash)
	if err != nil || !weak {
		return
	}
	digest, err := e.hasher.Hash(pass)
	if err != nil {
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, digest, false); err != nil {
		e.log.Warn("hash upgrade failed", "user_id", user.ID, "error", err)
	}
}

func (e *Engine) emit(ctx context.Context, event audit.Event) {
	e.audit.Emit(ctx, event)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func claimsUserID(claims *token.Claims) string {
	if claims == nil {
		return ""
	}
	return claims.UserID
}
