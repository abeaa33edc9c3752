// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime knob for the identity service. The auth
// secret is deliberately excluded from String and must never be logged.
type Config struct {
	Addr        string `env:"IDENTITY_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"IDENTITY_PG_DSN"`
	LogLevel    string `env:"IDENTITY_LOG_LEVEL" envDefault:"info"`

	AuthSecret      string        `env:"IDENTITY_AUTH_SECRET"`
	AccessTokenTTL  time.Duration `env:"IDENTITY_ACCESS_TOKEN_TTL" envDefault:"30m"`
	RefreshTokenTTL time.Duration `env:"IDENTITY_REFRESH_TOKEN_TTL" envDefault:"168h"`

	HashTime      uint32 `env:"IDENTITY_HASH_TIME" envDefault:"1"`
	HashMemoryKiB uint32 `env:"IDENTITY_HASH_MEMORY_KIB" envDefault:"65536"`
	HashThreads   uint8  `env:"IDENTITY_HASH_THREADS" envDefault:"4"`
	HashWorkers   int    `env:"IDENTITY_HASH_WORKERS" envDefault:"4"`

	SweepInterval time.Duration `env:"IDENTITY_SESSION_SWEEP_INTERVAL" envDefault:"1h"`

	GoogleClientID     string `env:"IDENTITY_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"IDENTITY_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"IDENTITY_GOOGLE_REDIRECT_URL"`
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.AuthSecret == "" {
		return errors.New("config: IDENTITY_AUTH_SECRET is required")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.HashWorkers <= 0 {
		return errors.New("config: IDENTITY_HASH_WORKERS must be positive")
	}
	return nil
}

// GoogleOAuthEnabled reports whether the Google login flow is configured.
func (c Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}
