package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coursekit/authcore"
	"github.com/coursekit/authcore/autherr"
)

type identityContextKey struct{}

// IdentityFromContext returns the authenticated principal injected by
// [Guard], or false when the request did not pass through it.
func IdentityFromContext(ctx context.Context) (*authcore.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*authcore.Identity)
	return id, ok
}

// Guard authenticates every request before it reaches next. The access
// credential is read from the Authorization header, falling back to the
// access cookie, and verified together with its bound session and
// device fingerprint.
//
// All verification failures produce the same generic 401 body; the
// distinct internal codes are never surfaced. Rate-limit and lockout
// rejections are the exception, since telling a legitimate client to
// back off is safe.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := credentialFromRequest(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := authcore.WithClientIP(r.Context(), clientIP(r))
			ctx = authcore.WithUserAgent(ctx, r.UserAgent())

			identity, err := engine.Authenticate(ctx, token)
			if err != nil {
				writeDenied(w, err)
				return
			}

			ctx = context.WithValue(ctx, identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route on the authenticated role. Must run after
// [Guard].
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if identity.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func credentialFromRequest(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if cookie, err := r.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeDenied(w http.ResponseWriter, err error) {
	switch autherr.CodeOf(err) {
	case autherr.CodeRateLimitExceeded:
		setRetryAfter(w, autherr.RetryAfterOf(err))
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	case autherr.CodeAccountLocked:
		setRetryAfter(w, autherr.RetryAfterOf(err))
		http.Error(w, "account locked", http.StatusLocked)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func setRetryAfter(w http.ResponseWriter, d time.Duration) {
	if d <= 0 {
		return
	}
	seconds := int(d / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
}
