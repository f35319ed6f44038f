// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every runtime setting. All fields come from the
// environment with sensible development defaults; only JWT_SECRET is
// required.
type Config struct {
	Port      int           `env:"PORT" envDefault:"8080"`
	DBPath    string        `env:"DB_PATH" envDefault:"./data/tally.db"`
	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// Superuser is the single hardcoded account that bypasses group-admin
	// checks. One config constant, not a role system.
	Superuser string `env:"SUPERUSER" envDefault:"wtx"`

	// Release suppresses error details in responses and switches gin to
	// release mode.
	Release bool `env:"RELEASE" envDefault:"false"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
