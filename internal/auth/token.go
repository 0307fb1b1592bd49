package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = time.Hour

// TokenManager mints, validates and revokes HS256 tokens. The signing secret
// lives in a memguard enclave and is only decrypted while a token is being
// signed or verified.
type TokenManager struct {
	secret  *memguard.Enclave
	ttl     time.Duration
	revoked *RevocationSet
	now     func() time.Time
}

func NewTokenManager(secret, algorithm string, ttl time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret is required")
	}

	algorithm = strings.TrimSpace(algorithm)
	if algorithm != "" && algorithm != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &TokenManager{
		secret:  memguard.NewEnclave([]byte(secret)),
		ttl:     ttl,
		revoked: NewRevocationSet(),
		now:     time.Now,
	}, nil
}

// WithClock replaces the wall clock used for iat/exp and for expiry checks.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	if now != nil {
		m.now = now
		m.revoked.WithClock(now)
	}
	return m
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

func (m *TokenManager) Revocations() *RevocationSet {
	return m.revoked
}

func (m *TokenManager) GenerateDefaultToken(identity string) (string, error) {
	return m.GenerateToken(identity, m.ttl)
}

func (m *TokenManager) GenerateToken(identity string, expiration time.Duration) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidInput)
	}
	if expiration < 0 {
		return "", fmt.Errorf("%w: negative expiration", ErrInvalidInput)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := m.now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			ID:        id.String(),
		},
	}

	var encoded string
	err = m.withSecret(func(key []byte) error {
		var signErr error
		encoded, signErr = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		return signErr
	})
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}

	return encoded, nil
}

// ValidateToken returns the payload of a token that is authentic, unexpired
// and not revoked. Every failure is reported as ErrInvalidToken.
func (m *TokenManager) ValidateToken(tokenStr string) (TokenClaims, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return TokenClaims{}, ErrInvalidToken
	}
	if m.revoked.Contains(claims.ID) {
		return TokenClaims{}, ErrInvalidToken
	}

	return TokenClaims{
		Subject:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		ID:        claims.ID,
	}, nil
}

// InvalidateToken revokes an authentic, unexpired token. It returns false for
// garbage input and for a token that is already revoked.
func (m *TokenManager) InvalidateToken(tokenStr string) bool {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return false
	}

	return m.revoked.Add(claims.ID, claims.ExpiresAt.Time)
}

func (m *TokenManager) parse(tokenStr string) (*tokenClaims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	claims := &tokenClaims{}
	err := m.withSecret(func(key []byte) error {
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
			return key, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithStrictDecoding(),
			jwt.WithTimeFunc(m.now),
		)
		if err != nil {
			return err
		}
		if !token.Valid {
			return ErrInvalidToken
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (m *TokenManager) withSecret(fn func(key []byte) error) error {
	buf, err := m.secret.Open()
	if err != nil {
		return fmt.Errorf("open signing key: %w", err)
	}
	defer buf.Destroy()

	return fn(buf.Bytes())
}
