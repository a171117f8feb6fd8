// Package config reads the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Port string

	AdminPIN     string
	AdminPINHash string
	AdminEvery   time.Duration
	AdminBurst   int

	GoogleBooksURL      string
	GoogleBooksAPIKey   string
	GoogleBooksLang     string
	LookupTimeout       time.Duration
	LookupRatePerMinute int

	DatabaseURL string
	SeedCatalog bool

	LogLevel     slog.Level
	LogFormat    string
	OTLPEndpoint string
	ServiceName  string
}

// Load reads the environment. Missing variables take their defaults; values
// that do not parse fail with ErrInvalid.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	getEnv := func(key, defaultValue string) string {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		return defaultValue
	}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		AdminPIN:          getEnv("ADMIN_PIN", ""),
		AdminPINHash:      getEnv("ADMIN_PIN_HASH", ""),
		GoogleBooksURL:    getEnv("GOOGLE_BOOKS_URL", "https://www.googleapis.com/books/v1/volumes"),
		GoogleBooksAPIKey: getEnv("GOOGLE_BOOKS_API_KEY", ""),
		GoogleBooksLang:   getEnv("GOOGLE_BOOKS_LANG", "id"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:       getEnv("SERVICE_NAME", "schoolshelf"),
	}

	var err error
	if cfg.LookupTimeout, err = parseDuration("LOOKUP_TIMEOUT", getEnv("LOOKUP_TIMEOUT", "10s")); err != nil {
		return Config{}, err
	}
	if cfg.LookupRatePerMinute, err = parsePositive("LOOKUP_RATE_PER_MINUTE", getEnv("LOOKUP_RATE_PER_MINUTE", "60")); err != nil {
		return Config{}, err
	}
	if cfg.AdminEvery, err = parseDuration("ADMIN_ATTEMPT_INTERVAL", getEnv("ADMIN_ATTEMPT_INTERVAL", "12s")); err != nil {
		return Config{}, err
	}
	if cfg.AdminBurst, err = parsePositive("ADMIN_ATTEMPT_BURST", getEnv("ADMIN_ATTEMPT_BURST", "20")); err != nil {
		return Config{}, err
	}
	if cfg.SeedCatalog, err = strconv.ParseBool(getEnv("SEED_CATALOG", "false")); err != nil {
		return Config{}, fmt.Errorf("%w: SEED_CATALOG: %v", ErrInvalid, err)
	}
	if err = cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("%w: LOG_LEVEL: %v", ErrInvalid, err)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("%w: LOG_FORMAT must be text or json, got %q", ErrInvalid, cfg.LogFormat)
	}
	if cfg.AdminPIN == "" && cfg.AdminPINHash == "" {
		return Config{}, fmt.Errorf("%w: ADMIN_PIN or ADMIN_PIN_HASH is required", ErrInvalid)
	}

	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalid, key)
	}
	return d, nil
}

func parsePositive(key, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalid, key)
	}
	return n, nil
}
