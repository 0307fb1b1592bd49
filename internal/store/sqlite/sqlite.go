// Package sqlite implements the credential store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"auth-core/internal/auth"
)

const memoryPath = ":memory:"

// Store implements auth.CredentialStore using SQLite. The UNIQUE constraint
// on identity turns concurrent registrations into a single winner.
type Store struct {
	db        *sql.DB
	writeLock *sync.Mutex // modernc sqlite serializes writers; avoid SQLITE_BUSY churn
}

var _ auth.CredentialStore = (*Store)(nil)

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// every :memory: connection is a separate database
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := initializeDB(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	return &Store{db: db, writeLock: new(sync.Mutex)}, nil
}

func initializeDB(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			identity      TEXT    UNIQUE NOT NULL,
			password_hash TEXT    NOT NULL,
			created_at    INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

func (s *Store) FindHash(ctx context.Context, identity string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT password_hash FROM credentials WHERE identity = ?",
		identity,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query credential: %w", err)
	}

	return hash, true, nil
}

func (s *Store) Insert(ctx context.Context, identity, passwordHash string) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO credentials (identity, password_hash, created_at) VALUES (?, ?, ?)",
		identity,
		passwordHash,
		time.Now().Unix(),
	)
	if err != nil {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) {
			switch liteErr.Code() {
			case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
				return auth.ErrDuplicateIdentity
			}
		}

		return fmt.Errorf("insert credential: %w", err)
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
