package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "HS256", cfg.Token.Algorithm)
	assert.Equal(t, time.Hour, cfg.Token.TTL())
	assert.Equal(t, 5, cfg.Login.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Login.Window())
	assert.Equal(t, time.Minute, cfg.Login.IPWindow())
	assert.Equal(t, "bcrypt", cfg.Password.Hasher)
	assert.EqualValues(t, 1, cfg.Password.Argon2Time)
	assert.EqualValues(t, 64*1024, cfg.Password.Argon2MemoryKiB)
	assert.EqualValues(t, 4, cfg.Password.Argon2Parallelism)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.True(t, cfg.Store.RunMigrations)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load(Options{})
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TOKEN_TTL_SECONDS", "120")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PASSWORD_HASHER", "argon2id")
	t.Setenv("ARGON2_TIME", "3")
	t.Setenv("ARGON2_MEMORY_KIB", "2048")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "argon2id", cfg.Password.Hasher)
	assert.EqualValues(t, 3, cfg.Password.Argon2Time)
	assert.EqualValues(t, 2048, cfg.Password.Argon2MemoryKiB)
	assert.Equal(t, 2*time.Minute, cfg.Token.TTL())
	assert.Equal(t, 3, cfg.Login.MaxAttempts)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(Options{LoadDotEnv: true, Files: []string{path}})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token.Secret)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	t.Run("PostgresNeedsURL", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "postgres")
		_, err := Load(Options{})
		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mongo")
		_, err := Load(Options{})
		assert.Error(t, err)
	})

	t.Run("NonPositiveTTL", func(t *testing.T) {
		t.Setenv("TOKEN_TTL_SECONDS", "0")
		_, err := Load(Options{})
		assert.Error(t, err)
	})
}
