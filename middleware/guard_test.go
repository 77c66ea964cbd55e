package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coursekit/authcore"
	"github.com/coursekit/authcore/memstore"
	"github.com/coursekit/authcore/middleware"
	"github.com/coursekit/authcore/password"
)

const (
	testPassword = "MySecureP@ssw0rd!"
	// httptest.NewRequest fills RemoteAddr with this address.
	testIP        = "192.0.2.1"
	testUserAgent = "test-agent"
)

func newTestSetup(t *testing.T) (*authcore.Engine, *memstore.Store) {
	t.Helper()

	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	store := memstore.New()
	engine, err := authcore.New().
		WithConfig(cfg).
		WithUserStore(store.Users()).
		WithSessionStore(store.Sessions()).
		WithAttemptStore(store.Attempts()).
		WithAccountStore(store.Accounts()).
		WithHistoryStore(store.History()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	hasher, err := password.NewHasher(password.HashConfig{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	digest, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	store.AddUser(&authcore.User{ID: "u1", Email: "a@b.c", Role: "admin", PasswordHash: digest})

	return engine, store
}

func login(t *testing.T, engine *authcore.Engine) *authcore.LoginResult {
	t.Helper()

	ctx := authcore.WithClientIP(context.Background(), testIP)
	ctx = authcore.WithUserAgent(ctx, testUserAgent)
	result, err := engine.Login(ctx, "a@b.c", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return result
}

func newRequest() *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("User-Agent", testUserAgent)
	return r
}

func TestGuardRejectsMissingCredential(t *testing.T) {
	engine, _ := newTestSetup(t)
	handler := middleware.Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGuardRejectsGarbageCredential(t *testing.T) {
	engine, _ := newTestSetup(t)
	handler := middleware.Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := newRequest()
	r.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGuardAcceptsBearerAndInjectsIdentity(t *testing.T) {
	engine, _ := newTestSetup(t)
	result := login(t, engine)

	var seen *authcore.Identity
	handler := middleware.Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = middleware.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := newRequest()
	r.Header.Set("Authorization", "Bearer "+result.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if seen == nil || seen.UserID != "u1" || seen.Role != "admin" {
		t.Fatalf("unexpected identity: %+v", seen)
	}
}

func TestGuardAcceptsAccessCookie(t *testing.T) {
	engine, _ := newTestSetup(t)
	result := login(t, engine)

	handler := middleware.Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := newRequest()
	r.AddCookie(&http.Cookie{Name: middleware.AccessCookieName, Value: result.AccessToken})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGuardRejectsOtherDevice(t *testing.T) {
	engine, _ := newTestSetup(t)

	// Credential bound to a different IP than the request's RemoteAddr.
	ctx := authcore.WithClientIP(context.Background(), "203.0.113.7")
	ctx = authcore.WithUserAgent(ctx, testUserAgent)
	result, err := engine.Login(ctx, "a@b.c", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	handler := middleware.Guard(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := newRequest()
	r.Header.Set("Authorization", "Bearer "+result.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign device, got %d", rec.Code)
	}
	if rec.Body.String() != "unauthorized\n" {
		t.Fatalf("device mismatch must not be distinguishable: %q", rec.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	engine, _ := newTestSetup(t)
	result := login(t, engine)

	ok := middleware.Guard(engine)(middleware.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	denied := middleware.Guard(engine)(middleware.RequireRole("root")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})))

	r := newRequest()
	r.Header.Set("Authorization", "Bearer "+result.AccessToken)
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for matching role, got %d", rec.Code)
	}

	r = newRequest()
	r.Header.Set("Authorization", "Bearer "+result.AccessToken)
	rec = httptest.NewRecorder()
	denied.ServeHTTP(rec, r)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong role, got %d", rec.Code)
	}
}

func TestRequireRoleWithoutGuard(t *testing.T) {
	handler := middleware.RequireRole("admin")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newRequest())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without prior authentication, got %d", rec.Code)
	}
}

func TestSetAndClearAuthCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	middleware.SetAuthCookies(rec, "access-token", "refresh-token", 15*time.Minute, 7*24*time.Hour)

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode {
			t.Fatalf("cookie %s is not hardened: %+v", c.Name, c)
		}
		switch c.Name {
		case middleware.AccessCookieName:
			if c.Path != "/" || c.MaxAge != 900 {
				t.Fatalf("unexpected access cookie attributes: %+v", c)
			}
		case middleware.RefreshCookieName:
			if c.Path != middleware.RefreshCookiePath || c.MaxAge != 604800 {
				t.Fatalf("unexpected refresh cookie attributes: %+v", c)
			}
		default:
			t.Fatalf("unexpected cookie %s", c.Name)
		}
	}

	rec = httptest.NewRecorder()
	middleware.ClearAuthCookies(rec)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 || c.Value != "" {
			t.Fatalf("expected cookie %s expired, got %+v", c.Name, c)
		}
	}
}

func TestRefreshCredentialFromRequest(t *testing.T) {
	r := newRequest()
	if _, ok := middleware.RefreshCredentialFromRequest(r); ok {
		t.Fatal("expected no credential on a bare request")
	}

	r.AddCookie(&http.Cookie{Name: middleware.RefreshCookieName, Value: "from-cookie"})
	if token, ok := middleware.RefreshCredentialFromRequest(r); !ok || token != "from-cookie" {
		t.Fatalf("expected cookie credential, got %q, %v", token, ok)
	}

	r = newRequest()
	r.Header.Set("Authorization", "Bearer from-header")
	if token, ok := middleware.RefreshCredentialFromRequest(r); !ok || token != "from-header" {
		t.Fatalf("expected header fallback, got %q, %v", token, ok)
	}
}
