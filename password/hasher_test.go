package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// fastConfig keeps test runs quick while staying above the safe floor.
func fastConfig() HashConfig {
	return HashConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(fastConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("MySecureP@ssw0rd!")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("expected PHC argon2id digest, got %q", encoded)
	}

	ok, err := h.Verify("MySecureP@ssw0rd!", encoded)
	if err != nil || !ok {
		t.Fatalf("expected match, got %v, %v", ok, err)
	}
	ok, err = h.Verify("wrong-password", encoded)
	if err != nil || ok {
		t.Fatalf("expected mismatch, got %v, %v", ok, err)
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("same-input")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("same-input")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == b {
		t.Fatal("two digests of the same password must differ")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := newTestHasher(t)

	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=8192,t=1,p=1$short",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=64,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
	} {
		if _, err := h.Verify("anything", encoded); err == nil {
			t.Fatalf("expected error for digest %q", encoded)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := NewHasher(fastConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	encoded, err := weak.Hash("some-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	current, err := NewHasher(HashConfig{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	needs, err := current.NeedsRehash(encoded)
	if err != nil || !needs {
		t.Fatalf("expected weaker digest to need rehash, got %v, %v", needs, err)
	}

	fresh, err := current.Hash("some-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	needs, err = current.NeedsRehash(fresh)
	if err != nil || needs {
		t.Fatalf("expected current digest to be fine, got %v, %v", needs, err)
	}
}

func TestLegacyBcryptDetectionAndVerify(t *testing.T) {
	h := newTestHasher(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt generate failed: %v", err)
	}

	if !IsLegacy(string(legacy)) {
		t.Fatal("bcrypt digest should be detected as legacy")
	}
	if IsLegacy("$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA") {
		t.Fatal("argon2id digest must not read as legacy")
	}

	ok, err := h.VerifyLegacy("old-password", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected legacy match, got %v, %v", ok, err)
	}
	ok, err = h.VerifyLegacy("wrong", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected legacy mismatch, got %v, %v", ok, err)
	}
}

func TestNewHasherRejectsWeakParameters(t *testing.T) {
	cases := []HashConfig{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for i, cfg := range cases {
		if _, err := NewHasher(cfg); err == nil {
			t.Fatalf("case %d: expected rejection of weak parameters", i)
		}
	}
}
