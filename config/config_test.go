package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/retail-ledger/config"
	"go.uber.org/zap/zapcore"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DB_DRIVER", "DB_PATH", "DB_SOURCE", "SERVER_PORT", "ENVIRONMENT",
		"LOG_LEVEL", "STORE_TIMEOUT", "ALLOC_ATTEMPTS", "CAS_ATTEMPTS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.Driver)
	assert.Equal(t, "ledger.db", cfg.DBPath)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 16, cfg.AllocAttempts)
	assert.Equal(t, 8, cfg.CASAttempts)
}

func TestLoad_EnvironmentThenFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("CAS_ATTEMPTS", "3")

	cfg, err := config.Load([]string{"-port", "3000", "-log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port, "flag overrides environment")
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 3, cfg.CASAttempts)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"postgres without dsn", map[string]string{"DB_DRIVER": "postgres"}, nil},
		{"unknown driver", nil, []string{"-driver", "mysql"}},
		{"non-numeric port", map[string]string{"SERVER_PORT": "http"}, nil},
		{"bad duration", map[string]string{"STORE_TIMEOUT": "soon"}, nil},
		{"bad log level", nil, []string{"-log-level", "chatty"}},
		{"zero attempts", map[string]string{"ALLOC_ATTEMPTS": "0"}, nil},
		{"unknown flag", nil, []string{"-verbose"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoad_PostgresWithDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_SOURCE", "postgres://ledger@localhost/ledger")

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, config.DriverPostgres, cfg.Driver)
}

func TestConfig_Logger(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
