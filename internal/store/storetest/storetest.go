// Package storetest holds the behavior every auth.CredentialStore must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-core/internal/auth"
)

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) auth.CredentialStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("MissingIdentity", func(t *testing.T) {
		s := newStore(t)

		hash, found, err := s.FindHash(ctx, "nobody")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, hash)
	})

	t.Run("InsertFind", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Insert(ctx, "alice@example.com", "$2a$04$digest"))

		hash, found, err := s.FindHash(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "$2a$04$digest", hash)
	})

	t.Run("IdentityIsExact", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Insert(ctx, "Alice", "h1"))
		require.NoError(t, s.Insert(ctx, "alice", "h2"))

		hash, found, err := s.FindHash(ctx, "alice")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "h2", hash)
	})

	t.Run("DuplicateKeepsFirst", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Insert(ctx, "bob", "first"))
		err := s.Insert(ctx, "bob", "second")
		assert.ErrorIs(t, err, auth.ErrDuplicateIdentity)

		hash, _, err := s.FindHash(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "first", hash)
	})

	t.Run("ConcurrentInsertSingleWinner", func(t *testing.T) {
		s := newStore(t)

		const workers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
			errs []error
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.Insert(ctx, "race", fmt.Sprintf("hash-%d", i))
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					wins++
				} else if !errors.Is(err, auth.ErrDuplicateIdentity) {
					errs = append(errs, err)
				}
			}(i)
		}
		wg.Wait()

		assert.Empty(t, errs)
		assert.Equal(t, 1, wins)
	})
}
