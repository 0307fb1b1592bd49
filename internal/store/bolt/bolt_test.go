package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-core/internal/auth"
	"auth-core/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "auth.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) auth.CredentialStore {
		return newTestStore(t)
	})
}

func TestBoltStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auth.bolt")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, "alice", "digest"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	hash, found, err := s.FindHash(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "digest", hash)
}
