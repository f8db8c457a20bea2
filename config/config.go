package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/instantmart/admin-console/internal/data/cryptoutil"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - api.go: backend API and realtime endpoints
//   - auth.go: session and token refresh configuration
//   - storage.go: durable token storage backend selection
//   - database.go: PostgreSQL and Redis connections
//   - http.go: console HTTP server configuration
//   - observability.go: metrics configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	API           APIConfig
	Realtime      RealtimeConfig
	Notifications NotificationsConfig
	Auth          AuthConfig
	Storage       StorageConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.API.Sanitize()
	c.Realtime.Sanitize()
	c.Notifications.Sanitize()
	c.Auth.Sanitize()
	c.Storage.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// Validate reports configuration that cannot work at all.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL is required"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q (valid options: debug, info, warn, error)", c.LogLevel))
	}
	if c.Storage.Encrypted() {
		if _, err := cryptoutil.ParseKey(c.Storage.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("invalid STORAGE_ENCRYPTION_KEY: %w", err))
		}
	}
	return errors.Join(errs...)
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
