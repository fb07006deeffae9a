package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Backend.Driver)
	assert.Equal(t, "redis", cfg.Realtime.Driver)
	assert.Equal(t, "5.00", cfg.Pricing.MinimumFare.String())
	assert.Equal(t, "0.10", cfg.Pricing.PlatformFeeRate.String())
	assert.False(t, cfg.Telegram.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PRICING_MINIMUM_FARE", "7.25")
	t.Setenv("BACKEND_DRIVER", "memory")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("DRIVER_LOCATION_STALE_AFTER", "45s")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg := Load()

	assert.Equal(t, "7.25", cfg.Pricing.MinimumFare.String())
	assert.Equal(t, "memory", cfg.Backend.Driver)
	assert.Equal(t, 90*time.Minute, cfg.Backend.SessionTTL)
	assert.Equal(t, 45*time.Second, cfg.Backend.LocationStale)
	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PRICING_PER_KM", "lots")
	t.Setenv("REDIS_DB", "x")

	cfg := Load()

	assert.Equal(t, "1.50", cfg.Pricing.PerKm.String())
	assert.Equal(t, 0, cfg.Redis.DB)
}
