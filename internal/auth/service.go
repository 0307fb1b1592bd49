package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore is the persistence the service needs. Insert must be an
// atomic insert-if-absent that reports ErrDuplicateIdentity on conflict.
type CredentialStore interface {
	FindHash(ctx context.Context, identity string) (string, bool, error)
	Insert(ctx context.Context, identity, passwordHash string) error
}

type Service struct {
	store   CredentialStore
	hasher  *PasswordHasher
	tokens  *TokenManager
	limiter *LoginRateLimiter
}

func NewService(store CredentialStore, tokens *TokenManager) *Service {
	return &Service{
		store: store,
		hasher: &PasswordHasher{
			algorithm:  HashBcrypt,
			bcryptCost: bcrypt.DefaultCost,
			argon:      DefaultArgon2idParams(),
		},
		tokens:  tokens,
		limiter: NewLoginRateLimiter(defaultMaxAttempts, defaultAttemptWindow),
	}
}

func (s *Service) WithSecurityConfig(maxAttempts int, window time.Duration) {
	s.limiter = NewLoginRateLimiter(maxAttempts, window)
}

func (s *Service) WithHasher(hasher *PasswordHasher) {
	if hasher != nil {
		s.hasher = hasher
	}
}

func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

func (s *Service) RateLimiter() *LoginRateLimiter {
	return s.limiter
}

func (s *Service) Register(ctx context.Context, identity, credential string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" || credential == "" {
		return ErrInvalidInput
	}

	hash, err := s.hasher.Hash(credential)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return ErrInvalidInput
		}
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.Insert(ctx, identity, hash); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("insert credential: %w", err)
	}

	return nil
}

// Login returns a signed token for a correct identity/credential pair.
// Unknown identities and wrong credentials both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, identity, credential string) (string, error) {
	identity = strings.TrimSpace(identity)

	if limited, retryAfter := s.limiter.Check(identity); limited {
		return "", RateLimitedError{RetryAfter: retryAfter}
	}

	if identity == "" || credential == "" {
		return "", ErrInvalidCredentials
	}

	hash, found, err := s.store.FindHash(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("find credential: %w", err)
	}
	if !found {
		s.hasher.VerifyDummy(credential)
		return "", ErrInvalidCredentials
	}

	if !s.hasher.Verify(credential, hash) {
		return "", ErrInvalidCredentials
	}

	return s.tokens.GenerateDefaultToken(identity)
}

func (s *Service) Logout(_ context.Context, token string) error {
	if !s.tokens.InvalidateToken(token) {
		return ErrAlreadyInvalidated
	}
	return nil
}

// RequireValidToken guards protected operations: it returns the token's
// identity or ErrInvalidToken.
func (s *Service) RequireValidToken(token string) (string, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ValidateToken is RequireValidToken returning the whole payload.
func (s *Service) ValidateToken(token string) (TokenClaims, error) {
	claims, err := s.tokens.ValidateToken(strings.TrimSpace(token))
	if err != nil {
		return TokenClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) BootstrapIdentity(ctx context.Context, identity, credential string) error {
	identity = strings.TrimSpace(identity)

	if identity == "" && credential == "" {
		return nil
	}
	if identity == "" || credential == "" {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required together")
	}

	err := s.Register(ctx, identity, credential)
	if err != nil && !errors.Is(err, ErrDuplicateIdentity) {
		return err
	}
	return nil
}
