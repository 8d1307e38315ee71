package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CALENDAR_FAILURE_POLICY", "")
	t.Setenv("SLOT_STORE", "")
	t.Setenv("WEBHOOK_DEDUP_TTL", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.SlotStore)
	assert.Equal(t, 10, cfg.BusinessStartHour)
	assert.Equal(t, 20, cfg.BusinessEndHour)
	assert.Equal(t, 30*time.Minute, cfg.SlotInterval)
	assert.Equal(t, 30, cfg.BookingWindowDays)
	assert.Equal(t, 24*time.Hour, cfg.DedupTTL)
	assert.True(t, cfg.FailClosed())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SLOT_STORE", " Redis ")
	t.Setenv("CALENDAR_FAILURE_POLICY", "ASSUME_FREE")
	t.Setenv("CALENDAR_TIMEOUT", "2s")
	t.Setenv("BUSINESS_END_HOUR", "not-a-number")
	t.Setenv("ADMIN_RATE_LIMIT_RPS", "0.5")

	cfg := Load()

	assert.Equal(t, "redis", cfg.SlotStore)
	assert.False(t, cfg.FailClosed())
	assert.Equal(t, 2*time.Second, cfg.CalendarTimeout)
	assert.Equal(t, 20, cfg.BusinessEndHour)
	assert.Equal(t, 0.5, cfg.AdminRateLimitRPS)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{SalonTimezone: "Mars/Olympus_Mons"}
	assert.Equal(t, time.UTC, cfg.Location())

	cfg.SalonTimezone = "UTC"
	assert.Equal(t, "UTC", cfg.Location().String())
}
