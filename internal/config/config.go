package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is loaded once at startup from the environment.
type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string

	// ReservationTTL bounds how long an unconfirmed stock reservation may
	// hold inventory before the janitor restores it.
	ReservationTTL  time.Duration
	JanitorInterval time.Duration

	// NotifyBuffer is the per-subscriber event buffer; events beyond it are
	// dropped rather than blocking settlement.
	NotifyBuffer int
}

func Load() (Config, error) {
	cfg := Config{
		ServiceName:     getenvDefault("SERVICE_NAME", "smalob-marketplace"),
		Env:             getenvDefault("ENV", "dev"),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		ReservationTTL:  15 * time.Minute,
		JanitorInterval: time.Minute,
		NotifyBuffer:    16,
	}

	var err error
	if cfg.ReservationTTL, err = durationEnv("RESERVATION_TTL", cfg.ReservationTTL); err != nil {
		return Config{}, err
	}
	if cfg.JanitorInterval, err = durationEnv("JANITOR_INTERVAL", cfg.JanitorInterval); err != nil {
		return Config{}, err
	}
	if cfg.NotifyBuffer, err = intEnv("NOTIFY_BUFFER", cfg.NotifyBuffer); err != nil {
		return Config{}, err
	}

	if cfg.ReservationTTL <= 0 {
		return Config{}, fmt.Errorf("config: RESERVATION_TTL must be positive")
	}
	if cfg.JanitorInterval <= 0 {
		return Config{}, fmt.Errorf("config: JANITOR_INTERVAL must be positive")
	}
	if cfg.NotifyBuffer <= 0 {
		return Config{}, fmt.Errorf("config: NOTIFY_BUFFER must be positive")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
