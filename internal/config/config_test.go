package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("MIN_AMOUNT", "")
	t.Setenv("MAX_AMOUNT", "")
	t.Setenv("DAILY_DEPOSIT_CAP", "")
	t.Setenv("RECONCILE_SCHEDULE", "")
	t.Setenv("CHAPA_TIMEOUT", "")
	t.Setenv("DEPOSIT_HOLD", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, "ETB", cfg.Currency)
	assert.True(t, decimal.NewFromInt(5).Equal(cfg.MinAmount))
	assert.True(t, decimal.NewFromInt(25000).Equal(cfg.MaxAmount))
	assert.True(t, decimal.NewFromInt(200000).Equal(cfg.DailyDepositCap))
	assert.Equal(t, "@every 5m", cfg.ReconcileSchedule)
	assert.Equal(t, 10*time.Second, cfg.Chapa.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.DepositHold)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("MIN_AMOUNT", "10.50")
	t.Setenv("CHAPA_TIMEOUT", "3s")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("DEPOSIT_HOLD", "30m")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.True(t, decimal.RequireFromString("10.5").Equal(cfg.MinAmount))
	assert.Equal(t, 3*time.Second, cfg.Chapa.Timeout)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 30*time.Minute, cfg.DepositHold)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("CHAPA_TIMEOUT", "soon")
	t.Setenv("MIN_AMOUNT", "five")
	t.Setenv("REDIS_DB", "x")

	_, err := FromEnv()
	require.Error(t, err)
	assert.ErrorContains(t, err, "CHAPA_TIMEOUT")
	assert.ErrorContains(t, err, "MIN_AMOUNT")
	assert.ErrorContains(t, err, "REDIS_DB")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			StorageDriver:   StoragePostgres,
			DBConnStr:       "postgres://localhost/db",
			MinAmount:       decimal.NewFromInt(5),
			MaxAmount:       decimal.NewFromInt(25000),
			DailyDepositCap: decimal.NewFromInt(200000),
		}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.MinAmount = decimal.Zero
	assert.ErrorContains(t, c.Validate(), "MIN_AMOUNT")

	c = base()
	c.MaxAmount = decimal.NewFromInt(1)
	assert.ErrorContains(t, c.Validate(), "MAX_AMOUNT")

	c = base()
	c.DailyDepositCap = decimal.NewFromInt(100)
	assert.ErrorContains(t, c.Validate(), "DAILY_DEPOSIT_CAP")

	c = base()
	c.StorageDriver = "sqlite"
	assert.ErrorContains(t, c.Validate(), "STORAGE_DRIVER")

	c = base()
	c.Environment = "production"
	err := c.Validate()
	assert.ErrorContains(t, err, "CHAPA_SECRET_KEY")
	assert.ErrorContains(t, err, "CHAPA_WEBHOOK_SECRET")
	assert.ErrorContains(t, err, "ADMIN_TOKEN")

	c.StorageDriver = StorageMemory
	assert.ErrorContains(t, c.Validate(), "memory storage driver")
}
