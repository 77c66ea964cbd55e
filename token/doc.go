// Package token issues, verifies, and revokes the signed credentials
// that carry an authenticated identity between requests.
//
// Credentials are JWTs signed with HS256 or Ed25519. Every issued token
// carries a globally unique jti, which is what makes individual
// revocation possible: revoking a token records its jti in a
// [Blacklist] until the token's natural expiry, with no global secret
// rotation.
//
// Each jti moves through one of two terminal states:
//
//	issued → valid → expired
//	issued → valid → revoked
//
// Both are permanent. A revoked jti stays revoked past its natural
// expiry; blacklist purging only removes entries that are already
// harmless because the token itself can no longer verify.
//
// Verification failures carry distinct [autherr] codes for logging and
// metrics. Callers facing untrusted clients must collapse them into a
// uniform "authentication failed" response; the distinction between a
// forged and an expired token is an oracle an attacker should not get.
package token
