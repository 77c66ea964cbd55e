// Package authcore is the authentication security core of the platform:
// it issues, verifies, and revokes signed credentials, manages session
// lifecycle and device binding, enforces password policy and adaptive
// hashing, and detects and blocks brute-force and credential-stuffing
// attacks.
//
// The package is the public surface. [Engine] orchestrates the
// subsystems; construct one through [Builder] at process startup and
// pass it by reference to request handlers; there is no implicit
// global state. Engine methods are safe for concurrent use after Build.
//
// # Architecture boundaries
//
// Concern packages (token, session, ratelimit, guard, password, device)
// own their mechanics; persistence is consumed through the repository
// interfaces in this package and never implemented here. The blacklist
// and rate-limit counters default to process-local stores; pass a Redis
// client to [Builder.WithRedis] to share them across instances; the
// algorithms are identical behind the same interfaces.
//
// # What this package must NOT do
//
//   - Render HTTP responses (the middleware package maps error codes to
//     statuses).
//   - Persist anything directly; all storage flows through the
//     collaborator interfaces.
//   - Include key material or plaintext passwords in errors, logs, or
//     audit metadata.
package authcore
