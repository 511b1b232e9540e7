// Package config loads growthledger command configuration from GROWTHLEDGER_*
// environment variables, with command-line flags taking precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/store"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds command configuration.
type Config struct {
	SourceDriver   string `env:"GROWTHLEDGER_SOURCE_DRIVER" envDefault:"sqlite"`
	SourceDSN      string `env:"GROWTHLEDGER_SOURCE_DSN"`
	SourceDatabase string `env:"GROWTHLEDGER_SOURCE_DATABASE"`
	LedgerDriver   string `env:"GROWTHLEDGER_LEDGER_DRIVER" envDefault:"sqlite"`
	LedgerDSN      string `env:"GROWTHLEDGER_LEDGER_DSN"`
	LedgerDatabase string `env:"GROWTHLEDGER_LEDGER_DATABASE"`

	FailurePolicy   growthledger.FailurePolicy `env:"GROWTHLEDGER_FAILURE_POLICY" envDefault:"abort"`
	ClassifierRules string                     `env:"GROWTHLEDGER_CLASSIFIER_RULES"`

	RedisURL string        `env:"GROWTHLEDGER_REDIS_URL"`
	LockTTL  time.Duration `env:"GROWTHLEDGER_LOCK_TTL" envDefault:"10m"`

	StoreTimeout  time.Duration `env:"GROWTHLEDGER_STORE_TIMEOUT" envDefault:"10s"`
	RetryMaxTries uint          `env:"GROWTHLEDGER_RETRY_MAX_TRIES" envDefault:"4"`

	MetricsTextfile string `env:"GROWTHLEDGER_METRICS_TEXTFILE"`
	LogLevel        string `env:"GROWTHLEDGER_LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"GROWTHLEDGER_LOG_FORMAT" envDefault:"text"`
	OTelEndpoint    string `env:"GROWTHLEDGER_OTEL_ENDPOINT"`
	Migrate         bool   `env:"GROWTHLEDGER_MIGRATE" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills in the sqlite paths when no DSN was given.
func (c *Config) applyDefaults() {
	if c.SourceDSN == "" && c.SourceDriver == DriverSQLite {
		c.SourceDSN = filepath.Join("data", "discovery.db")
	}
	if c.LedgerDSN == "" && c.LedgerDriver == DriverSQLite {
		c.LedgerDSN = filepath.Join("data", "growth_ledger.db")
	}
}

// Load parses the environment, then args with fs, and validates the
// result. Flags override environment values.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	cfg, err := Parse(fs, args)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse is Load without the store checks. Callers that can run with a
// store missing apply ValidateSource and ValidateLedger themselves.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	cfg, err := ParseEnv()
	if err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.SourceDriver, "source-driver", cfg.SourceDriver, "source store driver (sqlite|postgres|mongo)")
	fs.StringVar(&cfg.SourceDSN, "source-dsn", cfg.SourceDSN, "source store path or connection URL")
	fs.StringVar(&cfg.SourceDatabase, "source-database", cfg.SourceDatabase, "source database name (mongo)")
	fs.StringVar(&cfg.LedgerDriver, "ledger-driver", cfg.LedgerDriver, "ledger store driver (sqlite|postgres|mongo)")
	fs.StringVar(&cfg.LedgerDSN, "ledger-dsn", cfg.LedgerDSN, "ledger store path or connection URL")
	fs.StringVar(&cfg.LedgerDatabase, "ledger-database", cfg.LedgerDatabase, "ledger database name (mongo)")
	fs.TextVar(&cfg.FailurePolicy, "failure-policy", cfg.FailurePolicy, "conversion failure policy (abort|skip_invalid)")
	fs.StringVar(&cfg.ClassifierRules, "rules", cfg.ClassifierRules, "path to a YAML classifier rules file")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "redis URL for the run lock (empty disables it)")
	fs.DurationVar(&cfg.LockTTL, "lock-ttl", cfg.LockTTL, "run lock expiry")
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", cfg.StoreTimeout, "per-operation timeout for networked stores")
	fs.UintVar(&cfg.RetryMaxTries, "retry-max-tries", cfg.RetryMaxTries, "attempts per networked store operation")
	fs.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "write prometheus metrics to this file after the run")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text|json)")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", cfg.OTelEndpoint, "OTLP/HTTP trace endpoint (empty disables export)")
	fs.BoolVar(&cfg.Migrate, "migrate", cfg.Migrate, "apply ledger migrations on start")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.applyDefaults()
	if err := cfg.validateLogging(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks driver names and the settings each driver needs.
func (c Config) Validate() error {
	return errors.Join(c.ValidateSource(), c.ValidateLedger(), c.validateLogging())
}

// ValidateSource checks the source store settings.
func (c Config) ValidateSource() error {
	return validateStore("source", c.SourceDriver, c.SourceDSN, c.SourceDatabase)
}

// ValidateLedger checks the ledger store settings.
func (c Config) ValidateLedger() error {
	return validateStore("ledger", c.LedgerDriver, c.LedgerDSN, c.LedgerDatabase)
}

func validateStore(role, driver, dsn, database string) error {
	var errs []error
	switch driver {
	case DriverSQLite, DriverPostgres:
	case DriverMongo:
		if database == "" {
			errs = append(errs, fmt.Errorf("%s: mongo requires a database name", role))
		}
	default:
		return fmt.Errorf("%s: unknown driver %q", role, driver)
	}
	if dsn == "" {
		errs = append(errs, fmt.Errorf("%s: dsn is required", role))
	}
	return errors.Join(errs...)
}

func (c Config) validateLogging() error {
	var errs []error
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// RetryPolicy returns the networked store policy these settings describe.
// The backend supplies the transient-error predicate.
func (c Config) RetryPolicy() store.RetryPolicy {
	p := store.DefaultRetryPolicy(nil)
	if c.StoreTimeout > 0 {
		p.Timeout = c.StoreTimeout
	}
	if c.RetryMaxTries > 0 {
		p.MaxTries = c.RetryMaxTries
	}
	return p
}

// Logger builds the process logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
