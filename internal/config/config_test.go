package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "smalob-marketplace", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, time.Minute, cfg.JanitorInterval)
	assert.Equal(t, 16, cfg.NotifyBuffer)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "smalob-staging")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("RESERVATION_TTL", "5m")
	t.Setenv("JANITOR_INTERVAL", "30s")
	t.Setenv("NOTIFY_BUFFER", "64")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "smalob-staging", cfg.ServiceName)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, 30*time.Second, cfg.JanitorInterval)
	assert.Equal(t, 64, cfg.NotifyBuffer)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("RESERVATION_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsNonPositive(t *testing.T) {
	t.Setenv("NOTIFY_BUFFER", "0")
	_, err := Load()
	assert.Error(t, err)
}
