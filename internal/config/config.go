// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the binaries read from the environment.
type Config struct {
	Addr        string `env:"CLAVIS_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"CLAVIS_DATABASE_URL"`

	TokenSecret   string        `env:"CLAVIS_TOKEN_SECRET"`
	TokenIssuer   string        `env:"CLAVIS_TOKEN_ISSUER" envDefault:"clavis"`
	TokenAudience string        `env:"CLAVIS_TOKEN_AUDIENCE" envDefault:"clavis-api"`
	AccessTTL     time.Duration `env:"CLAVIS_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"CLAVIS_REFRESH_TTL" envDefault:"336h"`

	RateLimitRPS   float64 `env:"CLAVIS_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"CLAVIS_RATE_LIMIT_BURST" envDefault:"40"`
}

// Load parses the environment and validates the required settings.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings the service cannot run without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: CLAVIS_DATABASE_URL is required")
	}
	if len(c.TokenSecret) < 32 {
		return errors.New("config: CLAVIS_TOKEN_SECRET must be at least 32 bytes")
	}
	if c.AccessTTL <= 0 {
		return errors.New("config: CLAVIS_ACCESS_TTL must be positive")
	}
	if c.RefreshTTL <= c.AccessTTL {
		return errors.New("config: CLAVIS_REFRESH_TTL must exceed CLAVIS_ACCESS_TTL")
	}
	return nil
}
