package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	HashBcrypt   = "bcrypt"
	HashArgon2id = "argon2id"

	argon2idPrefix  = "$argon2id$"
	argon2idSaltLen = 16
	maxArgon2Memory = 256 * 1024 // KiB
	maxArgon2Time   = 16
	maxArgon2KeyLen = 64
	dummyCredential = "auth-core timing equalizer"
)

type Argon2idParams struct {
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
	KeyLen      uint32
}

func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
	}
}

// PasswordHasher produces salted adaptive digests and verifies plaintexts
// against them. Verify understands both bcrypt and argon2id digests
// regardless of which algorithm is used for new hashes.
type PasswordHasher struct {
	algorithm  string
	bcryptCost int
	argon      Argon2idParams

	dummyOnce sync.Once
	dummy     string
}

func NewPasswordHasher(algorithm string, bcryptCost int) (*PasswordHasher, error) {
	algorithm = strings.TrimSpace(strings.ToLower(algorithm))
	if algorithm == "" {
		algorithm = HashBcrypt
	}
	if algorithm != HashBcrypt && algorithm != HashArgon2id {
		return nil, fmt.Errorf("unsupported password hasher %q", algorithm)
	}

	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}

	return &PasswordHasher{
		algorithm:  algorithm,
		bcryptCost: bcryptCost,
		argon:      DefaultArgon2idParams(),
	}, nil
}

// WithArgon2idParams overrides the non-zero fields of params. Values beyond
// what Verify accepts are rejected.
func (h *PasswordHasher) WithArgon2idParams(params Argon2idParams) error {
	if params.Time > maxArgon2Time || params.MemoryKiB > maxArgon2Memory || params.KeyLen > maxArgon2KeyLen {
		return fmt.Errorf("argon2id params out of range (t<=%d, m<=%d KiB, keylen<=%d)",
			maxArgon2Time, maxArgon2Memory, maxArgon2KeyLen)
	}
	if params.Time > 0 {
		h.argon.Time = params.Time
	}
	if params.MemoryKiB > 0 {
		h.argon.MemoryKiB = params.MemoryKiB
	}
	if params.Parallelism > 0 {
		h.argon.Parallelism = params.Parallelism
	}
	if params.KeyLen > 0 {
		h.argon.KeyLen = params.KeyLen
	}
	return nil
}

func (h *PasswordHasher) Algorithm() string {
	return h.algorithm
}

func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if h.algorithm == HashArgon2id {
		return h.hashArgon2id(plaintext)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches digest. Malformed digests yield
// false.
func (h *PasswordHasher) Verify(plaintext, digest string) bool {
	switch {
	case strings.HasPrefix(digest, argon2idPrefix):
		return verifyArgon2id(plaintext, digest)
	case strings.HasPrefix(digest, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
	default:
		return false
	}
}

// VerifyDummy spends the same work as a real Verify against a digest that
// never matches.
func (h *PasswordHasher) VerifyDummy(plaintext string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = h.Hash(dummyCredential)
	})
	_ = h.Verify(plaintext+"\x00", h.dummy)
}

func (h *PasswordHasher) hashArgon2id(plaintext string) (string, error) {
	salt := make([]byte, argon2idSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	p := h.argon
	key := argon2.IDKey([]byte(plaintext), salt, p.Time, p.MemoryKiB, p.Parallelism, p.KeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix,
		argon2.Version,
		p.MemoryKiB, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyArgon2id(plaintext, digest string) bool {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	if memory == 0 || memory > maxArgon2Memory || iterations == 0 || iterations > maxArgon2Time || threads == 0 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 || len(expected) > maxArgon2KeyLen {
		return false
	}

	key := argon2.IDKey([]byte(plaintext), salt, iterations, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1
}
