package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the stored record for one identity. Records are created on
// registration and never updated in place.
type Credential struct {
	ID           string
	Identity     string
	PasswordHash string
	CreatedAt    time.Time
}

// TokenClaims is the decoded payload of a valid token.
type TokenClaims struct {
	Subject   string    `json:"sub"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	ID        string    `json:"jti"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type tokenClaims struct {
	jwt.RegisteredClaims
}

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many login attempts")
	ErrInvalidToken       = errors.New("invalid token")
	ErrAlreadyInvalidated = errors.New("token already invalidated")
)

// RateLimitedError carries how long the caller should wait. It matches
// ErrRateLimited under errors.Is.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return ErrRateLimited.Error()
}

func (e RateLimitedError) Unwrap() error {
	return ErrRateLimited
}
