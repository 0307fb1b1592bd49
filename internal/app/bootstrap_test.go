package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-core/internal/config"
	"auth-core/internal/observability"
	"auth-core/internal/store/memory"
)

func testConfig(driver string) config.Config {
	return config.Config{
		AppEnv:   "test",
		LogLevel: "error",
		Token: config.TokenConfig{
			Secret:     "bootstrap-test-secret",
			Algorithm:  "HS256",
			TTLSeconds: 600,
		},
		Login: config.LoginConfig{
			MaxAttempts:     5,
			WindowSeconds:   900,
			IPMaxHits:       100,
			IPWindowSeconds: 60,
		},
		Password: config.PasswordConfig{Hasher: "bcrypt", BcryptCost: 4},
		Store:    config.StoreConfig{Driver: driver},

		CronSecret:    "cron",
		AdminUsername: "admin",
		AdminPassword: "admin-pw",
	}
}

func newTestRuntime(t *testing.T, cfg config.Config) *Runtime {
	t.Helper()
	runtime, err := Build(Options{
		Config: &cfg,
		Logger: observability.NewLoggerWithOutput(io.Discard, "error"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = runtime.Close() })
	return runtime
}

func serve(h http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuild_Routes(t *testing.T) {
	runtime := newTestRuntime(t, testConfig(config.StoreMemory))
	h := runtime.Handler

	rec := serve(h, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodPost, "/auth/login", `{"identity":"admin","password":"admin-pw"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&token))
	assert.EqualValues(t, 600, token.ExpiresIn)

	rec = serve(h, http.MethodGet, "/auth/me", "", token.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodPost, "/auth/logout", "", token.AccessToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(h, http.MethodPost, "/internal/maintenance/cleanup", "", "cron")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodGet, "/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuild_IPRateLimit(t *testing.T) {
	cfg := testConfig(config.StoreMemory)
	cfg.Login.IPMaxHits = 2
	runtime := newTestRuntime(t, cfg)

	body := `{"identity":"nobody","password":"pw"}`
	assert.Equal(t, http.StatusUnauthorized, serve(runtime.Handler, http.MethodPost, "/auth/login", body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(runtime.Handler, http.MethodPost, "/auth/login", body, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(runtime.Handler, http.MethodPost, "/auth/login", body, "").Code)
}

func TestOpenStore_FileDrivers(t *testing.T) {
	dir := t.TempDir()

	for _, driver := range []string{config.StoreSQLite, config.StoreBolt} {
		cfg := testConfig(driver)
		cfg.Store.SQLitePath = filepath.Join(dir, "nested", "auth.db")
		cfg.Store.BoltPath = filepath.Join(dir, "nested", "auth.bolt")

		runtime := newTestRuntime(t, cfg)
		rec := serve(runtime.Handler, http.MethodPost, "/auth/register", `{"identity":"alice","password":"pw"}`, "")
		assert.Equal(t, http.StatusCreated, rec.Code, driver)
	}
}

func TestNewService_Argon2idFromConfig(t *testing.T) {
	cfg := testConfig(config.StoreMemory)
	cfg.Password.Hasher = "argon2id"
	cfg.Password.Argon2Time = 2
	cfg.Password.Argon2MemoryKiB = 1024
	cfg.Password.Argon2Parallelism = 1

	store := memory.New()
	service, err := NewService(cfg, store)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, service.Register(ctx, "alice", "pw"))

	digest, found, err := store.FindHash(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, strings.HasPrefix(digest, "$argon2id$v=19$m=1024,t=2,p=1$"))

	_, err = service.Login(ctx, "alice", "pw")
	assert.NoError(t, err)

	cfg.Password.Argon2MemoryKiB = 1 << 30
	_, err = NewService(cfg, store)
	assert.Error(t, err)
}

func TestBuild_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("mongo")
	_, err := Build(Options{Config: &cfg, Logger: observability.NewLoggerWithOutput(io.Discard, "error")})
	assert.Error(t, err)
}
