// Package memory provides a process-local credential store for development
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"auth-core/internal/auth"
)

type Store struct {
	mu          sync.RWMutex
	credentials map[string]auth.Credential
}

var _ auth.CredentialStore = (*Store)(nil)

func New() *Store {
	return &Store{credentials: make(map[string]auth.Credential)}
}

func (s *Store) FindHash(_ context.Context, identity string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credential, ok := s.credentials[identity]
	if !ok {
		return "", false, nil
	}
	return credential.PasswordHash, true, nil
}

func (s *Store) Insert(_ context.Context, identity, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.credentials[identity]; exists {
		return auth.ErrDuplicateIdentity
	}

	s.credentials[identity] = auth.Credential{
		ID:           uuid.NewString(),
		Identity:     identity,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.credentials)
}

func (s *Store) Close() error {
	return nil
}
