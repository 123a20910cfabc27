// Package config loads server settings from the environment, then lets
// command-line flags override them.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds server settings, read from the environment then flags.
type Config struct {
	Driver        string // sqlite | postgres
	DBPath        string // sqlite file, or ":memory:"
	DBSource      string // postgres DSN
	Port          int
	Env           string // development | production
	LogLevel      string
	StoreTimeout  time.Duration
	AllocAttempts int
	CASAttempts   int
}

// Load reads the environment and applies flags parsed from args.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		Driver:        getenv("DB_DRIVER", DriverSQLite),
		DBPath:        getenv("DB_PATH", "ledger.db"),
		DBSource:      os.Getenv("DB_SOURCE"),
		Env:           getenv("ENVIRONMENT", "development"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		StoreTimeout:  5 * time.Second,
		AllocAttempts: 16,
		CASAttempts:   8,
		Port:          8080,
	}

	var err error
	if cfg.Port, err = envInt("SERVER_PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.AllocAttempts, err = envInt("ALLOC_ATTEMPTS", cfg.AllocAttempts); err != nil {
		return nil, err
	}
	if cfg.CASAttempts, err = envInt("CAS_ATTEMPTS", cfg.CASAttempts); err != nil {
		return nil, err
	}
	if v := os.Getenv("STORE_TIMEOUT"); v != "" {
		if cfg.StoreTimeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("STORE_TIMEOUT: %w", err)
		}
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "store driver (sqlite|postgres)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.DBSource, "dsn", cfg.DBSource, "PostgreSQL connection string")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", cfg.StoreTimeout, "timeout per store call")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the driver has what it needs and every bound is positive.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DBSource == "" {
			return errors.New("DB_SOURCE environment variable is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.StoreTimeout <= 0 {
		return errors.New("store timeout must be positive")
	}
	if c.AllocAttempts <= 0 || c.CASAttempts <= 0 {
		return errors.New("retry attempts must be positive")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Logger builds a development (console) or production (JSON) zap logger.
func (c *Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Env != "production" {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
