// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings of the filter service.
type Config struct {
	Addr               string
	APIKey             string
	LogLevel           string
	LogFormat          string
	GinMode            string
	DebounceWindow     time.Duration
	DefaultPeriodIndex int
	EventBuffer        int
}

// Load reads a .env file when present, then the environment.
func Load() (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset keys.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr:      stringOr(getenv("FILTERD_ADDR"), ":8080"),
		APIKey:    getenv("FILTERD_API_KEY"),
		LogLevel:  stringOr(getenv("LOG_LEVEL"), "info"),
		LogFormat: stringOr(getenv("LOG_FORMAT"), "text"),
		GinMode:   getenv("GIN_MODE"),
	}

	debounceMs, err := intOr(getenv, "FILTER_DEBOUNCE_MS", 1000)
	if err != nil {
		return Config{}, err
	}
	if debounceMs <= 0 {
		return Config{}, fmt.Errorf("FILTER_DEBOUNCE_MS must be positive, got %d", debounceMs)
	}
	cfg.DebounceWindow = time.Duration(debounceMs) * time.Millisecond

	if cfg.DefaultPeriodIndex, err = intOr(getenv, "FILTER_DEFAULT_PERIOD_INDEX", -1); err != nil {
		return Config{}, err
	}

	if cfg.EventBuffer, err = intOr(getenv, "FILTER_EVENT_BUFFER", 16); err != nil {
		return Config{}, err
	}
	if cfg.EventBuffer <= 0 {
		return Config{}, fmt.Errorf("FILTER_EVENT_BUFFER must be positive, got %d", cfg.EventBuffer)
	}

	return cfg, nil
}

func stringOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func intOr(getenv func(string) string, key string, fallback int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}
