// Package config loads process settings from the environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/adapters/postgres"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// SharedStoreCacheTTL bounds config cache staleness across replicas of a shared store
// when WAYPOINT_CACHE_TTL is not set.
const SharedStoreCacheTTL = 30 * time.Second

var (
	ErrParsingConfig = errors.New("failed to parse configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Redis holds the redis backend settings.
type Redis struct {
	URL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	Prefix string `env:"REDIS_PREFIX" envDefault:"waypoint:"`
}

// Webhook holds the delivery settings of webhook actions.
type Webhook struct {
	SigningSecret string        `env:"WEBHOOK_SIGNING_SECRET"`
	MaxRetries    int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"2"`
	Timeout       time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
}

// Config is the full process configuration.
type Config struct {
	HTTPAddr         string        `env:"WAYPOINT_HTTP_ADDR" envDefault:":8080"`
	Store            string        `env:"WAYPOINT_STORE" envDefault:"memory"`
	LogLevel         string        `env:"WAYPOINT_LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"WAYPOINT_LOG_FORMAT" envDefault:"text"`
	ActionTimeout    time.Duration `env:"WAYPOINT_ACTION_TIMEOUT" envDefault:"10s"`
	SyncEntryActions bool          `env:"WAYPOINT_SYNC_ENTRY_ACTIONS" envDefault:"false"`
	DefinitionsDir   string        `env:"WAYPOINT_DEFINITIONS_DIR"`
	DefaultTenant    string        `env:"WAYPOINT_DEFAULT_TENANT" envDefault:"default"`
	CacheEnabled     bool          `env:"WAYPOINT_CACHE_ENABLED" envDefault:"true"`
	CacheTTL         time.Duration `env:"WAYPOINT_CACHE_TTL" envDefault:"0s"`
	PIIPatterns      []string      `env:"WAYPOINT_AUDIT_PII_KEYS" envSeparator:"," envDefault:"(?i)email,(?i)phone,(?i)ssn,(?i)password"`
	ProcessCommands  string        `env:"WAYPOINT_PROCESS_COMMANDS"`

	Redis    Redis
	Postgres postgres.Config
	Webhook  Webhook
}

// Load reads the given .env files (".env" when none are named), then parses the
// environment. Missing .env files are ignored; variables already set win over them.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.Postgres.ConnectionString == "" {
			errs = append(errs, fmt.Errorf("%w: PG_CONN_URL is required for the postgres store", ErrInvalidConfig))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("%w: log format must be text or json, got %q", ErrInvalidConfig, c.LogFormat))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	if c.ActionTimeout < 0 || c.Webhook.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: timeouts cannot be negative", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// EffectiveCacheTTL is CacheTTL, or SharedStoreCacheTTL when the store is shared between
// processes and no TTL was configured. Invalidations only reach the local cache.
func (c Config) EffectiveCacheTTL() time.Duration {
	if c.CacheTTL == 0 && c.Store != StoreMemory {
		return SharedStoreCacheTTL
	}
	return c.CacheTTL
}

// Logger builds the process logger from LogLevel and LogFormat.
func (c Config) Logger() *slog.Logger {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.New(level, c.LogFormat)
}
