// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the binaries need at startup.
type Config struct {
	// HTTPAddr is the listen address for the API server.
	HTTPAddr string
	// PostgresDSN selects the Postgres backend; empty means the
	// in-memory store (local development and tests).
	PostgresDSN string
	// OpTimeout bounds each store operation.
	OpTimeout time.Duration
	// SessionTTL expires idle sessions; zero disables expiry.
	SessionTTL time.Duration
	// RateLimitRPS and RateLimitBurst shape the per-client limiter on
	// the login endpoint.
	RateLimitRPS   float64
	RateLimitBurst int
	// MigrationsDir and SeedsDir point at the SQL files.
	MigrationsDir string
	SeedsDir      string
}

// Load reads .env (if present) and then the environment. Missing values
// fall back to development defaults.
func Load() (Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:       getenv("BACKOFFICE_HTTP_ADDR", ":8080"),
		PostgresDSN:    os.Getenv("BACKOFFICE_PG_DSN"),
		OpTimeout:      5 * time.Second,
		SessionTTL:     12 * time.Hour,
		RateLimitRPS:   1,
		RateLimitBurst: 5,
		MigrationsDir:  getenv("BACKOFFICE_MIGRATIONS_DIR", "db/migrations"),
		SeedsDir:       getenv("BACKOFFICE_SEEDS_DIR", "db/seeds"),
	}

	if raw := os.Getenv("BACKOFFICE_OP_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: BACKOFFICE_OP_TIMEOUT: %w", err)
		}
		cfg.OpTimeout = d
	}
	if raw := os.Getenv("BACKOFFICE_SESSION_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: BACKOFFICE_SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
