package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/coursekit/authcore/autherr"
	"github.com/coursekit/authcore/internal/audit"
	"github.com/coursekit/authcore/password"
)

// ValidatePassword runs the configured strength policy on a candidate
// without touching any stores. Intended for registration endpoints that
// want feedback before an account exists.
func (e *Engine) ValidatePassword(candidate string) password.Result {
	return e.policy.Validate(candidate)
}

// ChangePassword rotates a user's password. The current password must
// verify, the new one must satisfy the strength policy and must not
// match any of the recent historical digests. On success every other
// session of the user is invalidated, so stolen refresh tokens die with
// the old password.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("authcore: user lookup: %w", err)
	}
	if user == nil {
		return autherr.E(autherr.CodeInvalidCredentials, "authentication failed")
	}

	ok, err := e.verifyPassword(current, user.PasswordHash)
	if err != nil {
		e.log.Warn("stored password digest unreadable", "user_id", user.ID, "error", err)
		ok = false
	}
	if !ok {
		return autherr.E(autherr.CodeInvalidCredentials, "authentication failed")
	}

	result := e.policy.Validate(next)
	if !result.MeetsPolicy {
		e.metrics.Inc(MetricPasswordPolicyRejected)
		return autherr.E(autherr.CodePasswordPolicyViolation,
			"password does not meet policy: "+strings.Join(result.Feedback, "; "))
	}

	reused, err := e.CheckReuse(ctx, userID, next)
	if err != nil {
		return err
	}
	if reused {
		e.metrics.Inc(MetricPasswordReuseRejected)
		return autherr.E(autherr.CodePasswordReuseViolation,
			fmt.Sprintf("password matches one of the last %d passwords", e.policy.PreventReuseCount))
	}

	digest, err := e.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("authcore: password hashing: %w", err)
	}

	if err := e.history.Insert(ctx, &HistoryEntry{
		UserID:       userID,
		PasswordHash: user.PasswordHash,
		CreatedAt:    e.now(),
	}); err != nil {
		return fmt.Errorf("authcore: history insert: %w", err)
	}
	if err := e.users.UpdatePasswordHash(ctx, userID, digest, false); err != nil {
		return fmt.Errorf("authcore: password update: %w", err)
	}

	if n, err := e.sessions.InvalidateAllForUser(ctx, userID); err != nil {
		e.log.Warn("session invalidation after password change failed", "user_id", userID, "error", err)
	} else {
		e.metrics.Add(MetricSessionInvalidated, uint64(n))
	}

	e.metrics.Inc(MetricPasswordChanged)
	e.emit(ctx, audit.Event{
		EventType: "password_changed",
		Severity:  audit.SeverityMedium,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
	})
	return nil
}

// CheckReuse reports whether candidate matches the user's current
// password or any of the last PreventReuseCount historical ones.
// Historical digests may be legacy bcrypt; each is verified under its
// own scheme since the plaintexts are gone.
func (e *Engine) CheckReuse(ctx context.Context, userID, candidate string) (bool, error) {
	if e.policy.PreventReuseCount <= 0 {
		return false, nil
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("authcore: user lookup: %w", err)
	}
	if user != nil && user.PasswordHash != "" {
		match, err := e.verifyPassword(candidate, user.PasswordHash)
		if err == nil && match {
			return true, nil
		}
	}

	entries, err := e.history.RecentByUser(ctx, userID, e.policy.PreventReuseCount)
	if err != nil {
		return false, fmt.Errorf("authcore: history lookup: %w", err)
	}
	for _, entry := range entries {
		match, err := e.verifyPassword(candidate, entry.PasswordHash)
		if err != nil {
			// Skip unreadable rows rather than block the change.
			e.log.Warn("historical digest unreadable", "user_id", userID, "error", err)
			continue
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// MigrateLegacyPassword replaces a bcrypt digest with an Argon2id one.
// Only callable with the proven plaintext, which is why it runs during
// login.
func (e *Engine) MigrateLegacyPassword(ctx context.Context, userID, plaintext string) error {
	digest, err := e.hasher.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("authcore: password hashing: %w", err)
	}
	if err := e.users.UpdatePasswordHash(ctx, userID, digest, true); err != nil {
		return fmt.Errorf("authcore: password update: %w", err)
	}
	e.metrics.Inc(MetricLegacyHashMigrated)
	e.emit(ctx, audit.Event{
		EventType: "legacy_hash_migrated",
		Severity:  audit.SeverityLow,
		UserID:    userID,
	})
	return nil
}
