package middleware

import (
	"net/http"
	"time"
)

// Cookie names used by [SetAuthCookies].
const (
	AccessCookieName  = "authcore_access"
	RefreshCookieName = "authcore_refresh"
)

// RefreshCookiePath restricts where the browser sends the refresh
// credential. Only the refresh endpoint ever needs it.
const RefreshCookiePath = "/auth/refresh"

// SetAuthCookies writes the credential pair as hardened cookies:
// HttpOnly, Secure, SameSite=Strict, with Max-Age matching each
// credential's lifetime. The refresh cookie is path-restricted to the
// refresh endpoint.
func SetAuthCookies(w http.ResponseWriter, access, refresh string, accessTTL, refreshTTL time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    access,
		Path:     "/",
		MaxAge:   int(accessTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refresh,
		Path:     RefreshCookiePath,
		MaxAge:   int(refreshTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearAuthCookies expires both credential cookies. Call it on logout.
func ClearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// RefreshCredentialFromRequest extracts the refresh credential from the
// refresh cookie, falling back to the bearer header for non-browser
// clients.
func RefreshCredentialFromRequest(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}
