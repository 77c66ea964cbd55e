// Package device derives the fingerprint digest that binds credentials
// and sessions to a client context.
package device

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a deterministic digest of the client context.
// Identical inputs always produce the same digest; the inputs are
// separated by a NUL byte so ("ab","c") and ("a","bc") cannot collide.
// The digest is hex so it can travel inside JWT claims and audit
// metadata without further encoding.
func Fingerprint(userAgent, ip string) string {
	h := sha256.New()
	h.Write([]byte(userAgent))
	h.Write([]byte{0})
	h.Write([]byte(ip))
	return hex.EncodeToString(h.Sum(nil))
}
