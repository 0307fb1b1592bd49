// Package app wires configuration, storage and the auth service into an
// HTTP handler.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"auth-core/internal/auth"
	"auth-core/internal/config"
	"auth-core/internal/db"
	"auth-core/internal/maintenance"
	"auth-core/internal/observability"
	"auth-core/internal/store/bolt"
	"auth-core/internal/store/memory"
	"auth-core/internal/store/sqlite"
)

type Options struct {
	LoadDotEnv bool
	// Config skips environment loading when set.
	Config *config.Config
	Logger *observability.Logger
}

type Runtime struct {
	Handler http.Handler
	Service *auth.Service
	Config  config.Config
	Close   func() error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Store is a credential store that owns closable resources.
type Store interface {
	auth.CredentialStore
	io.Closer
}

func Build(options Options) (*Runtime, error) {
	cfg, err := resolveConfig(options)
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = observability.NewLoggerWithOutput(os.Stdout, cfg.LogLevel)
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv, cfg.Release); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	ctx := context.Background()

	store, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	service, err := NewService(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if err := service.BootstrapIdentity(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	ipLimiter := auth.NewLoginRateLimiter(cfg.Login.IPMaxHits, cfg.Login.IPWindow())
	authHandler := auth.NewHandler(service, logger)
	cleanupHandler := maintenance.NewCleanupHandler(
		service.Tokens().Revocations(),
		logger,
		cfg.CronSecret,
		service.RateLimiter(),
		ipLimiter,
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Post("/auth/register", authHandler.Register)
	r.With(ipLimiter.Middleware).Post("/auth/login", authHandler.Login)
	r.Post("/auth/logout", authHandler.Logout)
	r.With(requireToken(service)).Get("/auth/me", authHandler.Me)
	r.Get("/internal/maintenance/cleanup", cleanupHandler.Handle)
	r.Post("/internal/maintenance/cleanup", cleanupHandler.Handle)
	r.Get("/health", healthHandler(store))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, r))

	return &Runtime{
		Handler: handler,
		Service: service,
		Config:  cfg,
		Close: func() error {
			observability.FlushSentry()
			return store.Close()
		},
	}, nil
}

// NewService builds the auth service for cfg on top of store.
func NewService(cfg config.Config, store auth.CredentialStore) (*auth.Service, error) {
	tokens, err := auth.NewTokenManager(cfg.Token.Secret, cfg.Token.Algorithm, cfg.Token.TTL())
	if err != nil {
		return nil, fmt.Errorf("init token manager: %w", err)
	}

	hasher, err := auth.NewPasswordHasher(cfg.Password.Hasher, cfg.Password.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	err = hasher.WithArgon2idParams(auth.Argon2idParams{
		Time:        cfg.Password.Argon2Time,
		MemoryKiB:   cfg.Password.Argon2MemoryKiB,
		Parallelism: cfg.Password.Argon2Parallelism,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	service := auth.NewService(store, tokens)
	service.WithHasher(hasher)
	service.WithSecurityConfig(cfg.Login.MaxAttempts, cfg.Login.Window())
	return service, nil
}

// OpenStore opens the credential store selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *observability.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))

	switch driver {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite:
		if err := ensureDir(cfg.SQLitePath); err != nil {
			return nil, err
		}
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case config.StoreBolt:
		if err := ensureDir(cfg.BoltPath); err != nil {
			return nil, err
		}
		store, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		return store, nil
	case config.StorePostgres:
		database, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			applied, err := db.RunMigrations(ctx, database)
			if err != nil {
				_ = database.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			if len(applied) > 0 {
				logger.Info("migrations_applied", map[string]any{"versions": applied})
			}
		}
		return auth.NewRepository(database), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func resolveConfig(options Options) (config.Config, error) {
	if options.Config != nil {
		if err := options.Config.Validate(); err != nil {
			return config.Config{}, err
		}
		return *options.Config, nil
	}
	return config.Load(config.Options{LoadDotEnv: options.LoadDotEnv})
}

func requireToken(service *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return auth.Middleware(service, next)
	}
}

func healthHandler(store any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if p, ok := store.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}
