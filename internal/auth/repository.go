package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// Repository is the Postgres credential store. The unique index on
// credentials.identity makes Insert an atomic insert-if-absent.
type Repository struct {
	db *sql.DB
}

var _ CredentialStore = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindHash(ctx context.Context, identity string) (string, bool, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT password_hash
		FROM credentials
		WHERE identity = $1
	`, identity).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query credential by identity: %w", err)
	}

	return hash, true, nil
}

func (r *Repository) Insert(ctx context.Context, identity, passwordHash string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO credentials (id, identity, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, id.String(), identity, passwordHash, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("insert credential: %w", err)
	}

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
