// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SentryDSN string `env:"SENTRY_DSN"`
	Release   string `env:"RELEASE"`

	Token    TokenConfig
	Login    LoginConfig
	Password PasswordConfig
	Store    StoreConfig

	CronSecret    string `env:"CRON_SECRET"`
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

type TokenConfig struct {
	Secret     string `env:"JWT_SECRET,required,notEmpty"`
	Algorithm  string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	TTLSeconds int    `env:"TOKEN_TTL_SECONDS" envDefault:"3600"`
}

type LoginConfig struct {
	MaxAttempts     int `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	WindowSeconds   int `env:"LOGIN_WINDOW_SECONDS" envDefault:"900"`
	IPMaxHits       int `env:"LOGIN_RATE_LIMIT_MAX" envDefault:"20"`
	IPWindowSeconds int `env:"LOGIN_RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
}

type PasswordConfig struct {
	Hasher     string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`
	BcryptCost int    `env:"BCRYPT_COST" envDefault:"10"`

	Argon2Time        uint32 `env:"ARGON2_TIME" envDefault:"1"`
	Argon2MemoryKiB   uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Parallelism uint8  `env:"ARGON2_PARALLELISM" envDefault:"4"`
}

type StoreConfig struct {
	Driver        string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"var/auth.db"`
	BoltPath      string `env:"BOLT_PATH" envDefault:"var/auth.bolt"`
	MaxOpenConns  int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns  int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	RunMigrations bool   `env:"RUN_MIGRATIONS_ON_STARTUP" envDefault:"true"`
}

type Options struct {
	LoadDotEnv bool
	Files      []string
}

// Load reads .env files first when asked; variables already present in the
// environment win over file values.
func Load(options Options) (Config, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load(options.Files...)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case StoreMemory, StoreSQLite, StoreBolt:
	case StorePostgres:
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			return fmt.Errorf("missing required env: DATABASE_URL")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}

	if c.Token.TTLSeconds <= 0 {
		return fmt.Errorf("TOKEN_TTL_SECONDS must be positive")
	}
	if c.Login.MaxAttempts <= 0 || c.Login.WindowSeconds <= 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS and LOGIN_WINDOW_SECONDS must be positive")
	}
	return nil
}

func (c TokenConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c LoginConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

func (c LoginConfig) IPWindow() time.Duration {
	return time.Duration(c.IPWindowSeconds) * time.Second
}
