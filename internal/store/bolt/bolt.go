// Package bolt provides a BBolt-backed credential store.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"auth-core/internal/auth"
)

var credentialsBucket = []byte("credentials")

// Store keeps one JSON record per identity. Insert checks and writes inside a
// single read-write transaction, and bbolt allows one writer at a time.
type Store struct {
	db *bbolt.DB
}

var _ auth.CredentialStore = (*Store)(nil)

type record struct {
	ID           string    `json:"id"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(credentialsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Open opens a BBolt database at path and returns a Store on it.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}

	store, err := NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) FindHash(_ context.Context, identity string) (string, bool, error) {
	var (
		rec   record
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(credentialsBucket).Get([]byte(identity))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return "", false, fmt.Errorf("read credential: %w", err)
	}

	return rec.PasswordHash, found, nil
}

func (s *Store) Insert(_ context.Context, identity, passwordHash string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	data, err := json.Marshal(record{
		ID:           id.String(),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(credentialsBucket)
		if b.Get([]byte(identity)) != nil {
			return auth.ErrDuplicateIdentity
		}
		return b.Put([]byte(identity), data)
	})
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}
