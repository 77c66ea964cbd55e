package token

import (
	"context"
	"crypto/ed25519"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/coursekit/authcore/autherr"
)

// SigningMethod selects the credential signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// Token types carried in the "typ" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Config holds the immutable signing parameters of a [Manager].
type Config struct {
	SigningMethod SigningMethod
	// PrivateKey is the HS256 shared secret or the Ed25519 private key.
	PrivateKey []byte
	// PublicKey is the Ed25519 verify key. Unused for HS256.
	PublicKey []byte
	Issuer    string
	Audience  string
	Leeway    time.Duration
	// RevocationTTL bounds how long a revoked jti is remembered when the
	// token's own expiry cannot be read (damaged tokens). Defaults to 24h.
	RevocationTTL time.Duration
}

// Claims is the payload carried by every issued credential.
type Claims struct {
	UserID      string `json:"uid"`
	Role        string `json:"role,omitempty"`
	SessionID   string `json:"sid,omitempty"`
	Fingerprint string `json:"dfp,omitempty"`
	TokenType   string `json:"typ,omitempty"`
	Version     int    `json:"ver,omitempty"`
	jwt.RegisteredClaims
}

// Subject identifies who a credential is issued to.
type Subject struct {
	UserID string
	Role   string
}

// IssueOptions bind an issued credential to a session and device, and
// optionally defer its validity window.
type IssueOptions struct {
	SessionID   string
	Fingerprint string
	// NotBefore defers validity. Zero means valid immediately.
	NotBefore time.Time
}

// VerifyOptions control the optional checks layered on top of signature
// and time-window validation.
type VerifyOptions struct {
	// SkipBlacklist bypasses the revocation check. Used only for
	// introspection and tests; request authentication must never set it.
	SkipBlacklist bool
	// Fingerprint, when non-empty, must equal the fingerprint the token
	// was bound to at issuance. A bound token presented from a different
	// device fails with TOKEN_DEVICE_MISMATCH.
	Fingerprint string
	// ExpectType, when non-empty, requires the token's "typ" claim to
	// match (TypeAccess or TypeRefresh).
	ExpectType string
}

// Manager issues and validates signed credentials. Generation and
// verification are CPU-bound and side-effect-free; only revocation and
// the blacklist check touch the blacklist store.
type Manager struct {
	config    Config
	blacklist Blacklist
	now       func() time.Time
}

// NewManager validates cfg and returns a Manager using blacklist for
// revocation state.
func NewManager(cfg Config, blacklist Blacklist) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}
	if cfg.RevocationTTL <= 0 {
		cfg.RevocationTTL = 24 * time.Hour
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("token: hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) != 0 && len(cfg.PrivateKey) != ed25519.PrivateKeySize {
			return nil, errors.New("token: invalid ed25519 private key")
		}
		if len(cfg.PublicKey) != ed25519.PublicKeySize {
			return nil, errors.New("token: ed25519 requires a public key")
		}
	default:
		return nil, errors.New("token: unsupported signing method")
	}
	if blacklist == nil {
		return nil, errors.New("token: blacklist is required")
	}

	return &Manager{config: cfg, blacklist: blacklist, now: time.Now}, nil
}

// Generate issues a signed access credential for sub, valid for ttl.
// A fresh jti is attached on every call; jtis are never reused. The
// call performs no I/O.
func (m *Manager) Generate(sub Subject, ttl time.Duration, opts IssueOptions) (string, error) {
	return m.sign(Claims{
		UserID:      sub.UserID,
		Role:        sub.Role,
		SessionID:   opts.SessionID,
		Fingerprint: opts.Fingerprint,
		TokenType:   TypeAccess,
	}, ttl, opts.NotBefore)
}

// GenerateRefresh issues a refresh credential carrying a rotation
// version counter, so a whole refresh family can be retired by bumping
// the expected version.
func (m *Manager) GenerateRefresh(userID, sessionID string, version int, ttl time.Duration) (string, error) {
	return m.sign(Claims{
		UserID:    userID,
		SessionID: sessionID,
		TokenType: TypeRefresh,
		Version:   version,
	}, ttl, time.Time{})
}

func (m *Manager) sign(claims Claims, ttl time.Duration, notBefore time.Time) (string, error) {
	now := m.now()
	if notBefore.IsZero() {
		notBefore = now
	}

	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(notBefore),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    m.config.Issuer,
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	tok := jwt.NewWithClaims(m.signingMethod(), claims)
	signed, err := tok.SignedString(m.signKey())
	if err != nil {
		return "", autherr.Wrap(autherr.CodeTokenGenerationFailed, "signing failed", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience, expiry, and not-before,
// then blacklist membership and device binding per opts. Each failure
// mode returns a distinct coded error.
func (m *Manager) Verify(ctx context.Context, tokenStr string, opts VerifyOptions) (*Claims, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return nil, err
	}

	if opts.ExpectType != "" && claims.TokenType != opts.ExpectType {
		return nil, autherr.E(autherr.CodeTokenVerificationFailed, "unexpected token type")
	}

	if !opts.SkipBlacklist {
		revoked, err := m.blacklist.Contains(ctx, claims.ID)
		if err != nil {
			return nil, autherr.Wrap(autherr.CodeTokenVerificationFailed, "blacklist unavailable", err)
		}
		if revoked {
			return nil, autherr.E(autherr.CodeTokenRevoked, "token has been revoked")
		}
	}

	if opts.Fingerprint != "" {
		if subtle.ConstantTimeCompare([]byte(opts.Fingerprint), []byte(claims.Fingerprint)) != 1 {
			return nil, autherr.E(autherr.CodeTokenDeviceMismatch, "device fingerprint mismatch")
		}
	}

	return claims, nil
}

// Revoke extracts the jti from tokenStr and records it in the
// blacklist. The signature is deliberately not verified first: a
// damaged-but-decodable token can still be revoked defensively. The
// blacklist entry inherits the token's own expiry so purging it later
// is harmless.
func (m *Manager) Revoke(ctx context.Context, tokenStr string) error {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return autherr.Wrap(autherr.CodeInvalidTokenFormat, "token is not decodable", err)
	}
	if claims.ID == "" {
		return autherr.E(autherr.CodeInvalidTokenFormat, "token carries no jti")
	}

	expiresAt := m.now().Add(m.config.RevocationTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := m.blacklist.Add(ctx, claims.ID, expiresAt); err != nil {
		return autherr.Wrap(autherr.CodeTokenVerificationFailed, "blacklist unavailable", err)
	}
	return nil
}

// Decode extracts claims without verifying the signature or the time
// window. For diagnostics and cleanup paths only; never trust the
// result for authorization.
func (m *Manager) Decode(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, autherr.Wrap(autherr.CodeInvalidTokenFormat, "token is not decodable", err)
	}
	return claims, nil
}

func (m *Manager) parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.signingMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.signingMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey(), nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, autherr.E(autherr.CodeTokenVerificationFailed, "invalid claims")
	}
	if claims.ID == "" {
		return nil, autherr.E(autherr.CodeTokenVerificationFailed, "token carries no jti")
	}
	return claims, nil
}

// classifyParseError maps golang-jwt parse failures onto stable codes.
// Order matters: a malformed token is reported as a format error before
// any time-window classification, and expiry wins over not-before so a
// token that is both reads as expired.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return autherr.Wrap(autherr.CodeInvalidTokenFormat, "token is malformed", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return autherr.Wrap(autherr.CodeTokenExpired, "token has expired", err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return autherr.Wrap(autherr.CodeTokenNotYetValid, "token is not valid yet", err)
	default:
		return autherr.Wrap(autherr.CodeTokenVerificationFailed, "token verification failed", err)
	}
}

func (m *Manager) signingMethod() jwt.SigningMethod {
	if m.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (m *Manager) signKey() interface{} {
	if m.config.SigningMethod == MethodEd25519 {
		return ed25519.PrivateKey(m.config.PrivateKey)
	}
	return m.config.PrivateKey
}

func (m *Manager) verifyKey() interface{} {
	if m.config.SigningMethod == MethodEd25519 {
		return ed25519.PublicKey(m.config.PublicKey)
	}
	return m.config.PrivateKey
}

// SplitSegments exposes the three wire segments of a credential for
// tamper tests and diagnostics.
func SplitSegments(tokenStr string) (header, payload, signature string, err error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return "", "", "", errors.New("token: expected three segments")
	}
	return parts[0], parts[1], parts[2], nil
}
