package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Session.Duration)
	assert.Equal(t, 10*time.Second, cfg.Scene.RateLimit)
	assert.Equal(t, 3, cfg.Scene.MaxAttempts)
	assert.Equal(t, 3, cfg.Chain.ReceiptAttempts)
	assert.Equal(t, 3*time.Second, cfg.Chain.ReceiptRetryDelay)
	assert.Equal(t, uint64(300), cfg.Chain.LogScanBlocks)
	assert.Equal(t, 6, cfg.Chain.TokenDecimals)
	assert.False(t, cfg.Payment.AllowSimulated, "simulated payments must be off unless explicitly enabled")
	assert.Equal(t, "dev_", cfg.Payment.SimulatedPrefix)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SESSION_DURATION_HOURS", "5")
	t.Setenv("WATCH_RATE_LIMIT_SECONDS", "30")
	t.Setenv("RECEIPT_RETRY_DELAY", "250")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ALLOW_SIMULATED_PAYMENTS", "true")

	cfg := Load()

	assert.Equal(t, 5*time.Hour, cfg.Session.Duration)
	assert.Equal(t, 30*time.Second, cfg.Scene.RateLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Chain.ReceiptRetryDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Payment.AllowSimulated)
}

func TestValidate_RejectsSimulatedPaymentsInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ALLOW_SIMULATED_PAYMENTS", "true")

	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALLOW_SIMULATED_PAYMENTS")
}

func TestValidate_PostgresNeedsDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")

	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DSN")
}
