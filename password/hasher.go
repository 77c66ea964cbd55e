package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// HashConfig tunes the Argon2id cost parameters. The defaults in
// DefaultHashConfig are sized so a single Hash call takes tens of
// milliseconds on current server hardware.
type HashConfig struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHashConfig returns production-strength Argon2id parameters.
func DefaultHashConfig() HashConfig {
	return HashConfig{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher performs adaptive-cost one-way hashing. It holds no mutable
// state and is safe for concurrent use.
type Hasher struct {
	config HashConfig
}

// NewHasher validates cfg and returns a ready Hasher. Parameters below
// the minimum safe floor are rejected rather than silently raised.
func NewHasher(cfg HashConfig) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password: memory must be >= 8192 KiB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password: time cost must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password: parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password: salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password: key length must be >= 16")
	}
	return &Hasher{config: cfg}, nil
}

// Hash derives an Argon2id digest with a freshly generated random salt
// and returns it in PHC string format. Two calls with the same password
// produce different digests.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the digest with the parameters embedded in encoded
// and compares in constant time. A malformed digest is an error, not a
// plain false, so corrupt storage is distinguishable from a bad guess.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	params, salt, key, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		salt,
		params.time,
		params.memory,
		params.parallelism,
		uint32(len(key)),
	)

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with parameters
// weaker than the Hasher's current configuration.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	params, _, key, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	weaker := params.memory < h.config.Memory ||
		params.time < h.config.Time ||
		params.parallelism < h.config.Parallelism ||
		uint32(len(key)) != h.config.KeyLength
	return weaker, nil
}

// IsLegacy reports whether encoded is a digest from the retired bcrypt
// scheme rather than the current Argon2id format.
func IsLegacy(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

// VerifyLegacy checks password against a bcrypt digest. Used only on the
// migration path; new digests are always Argon2id.
func (h *Hasher) VerifyLegacy(password, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

type phcParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func decodePHC(encoded string) (phcParams, []byte, []byte, error) {
	var params phcParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return params, nil, nil, errors.New("password: invalid PHC format")
	}
	if parts[1] != algorithmID {
		return params, nil, nil, errors.New("password: unsupported algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, errors.New("password: invalid argon2 version")
	}
	if version != argon2.Version {
		return params, nil, nil, errors.New("password: unsupported argon2 version")
	}

	var memory, timeCost uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &parallelism); err != nil {
		return params, nil, nil, errors.New("password: invalid parameters")
	}
	if memory < minMemoryKB || timeCost < minTimeCost || parallelism < minParallelism {
		return params, nil, nil, errors.New("password: parameters below safe floor")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, errors.New("password: invalid salt encoding")
	}
	if uint32(len(salt)) < minSaltLength {
		return params, nil, nil, errors.New("password: invalid salt length")
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, errors.New("password: invalid hash encoding")
	}
	if len(key) == 0 {
		return params, nil, nil, errors.New("password: empty hash")
	}

	params.memory = memory
	params.time = timeCost
	params.parallelism = parallelism
	return params, salt, key, nil
}
