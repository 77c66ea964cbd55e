// Package password implements password strength scoring, Argon2id
// hashing, and migration away from legacy bcrypt digests.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Every call generates a fresh random salt, so hashing the same password
// twice yields different digests. [Hasher.NeedsRehash] reports whether a
// stored digest was produced with weaker parameters than currently
// configured, so callers can re-hash on the next successful login.
// Digests produced by the platform's previous bcrypt scheme are
// recognized by [IsLegacy] and verified by [Hasher.VerifyLegacy] until
// they are migrated.
//
// # Architecture boundaries
//
// This package owns scoring, hashing, and verification only. Reuse
// history and persistence are enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive
//     digests.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
