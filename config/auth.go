package config

import (
	"strings"
	"time"
)

// AuthConfig groups session and token refresh configuration.
type AuthConfig struct {
	// RefreshTimeout bounds one refresh-token exchange, independent of the callers waiting on it.
	RefreshTimeout time.Duration `env:"AUTH_REFRESH_TIMEOUT" envDefault:"30s"`

	// Profile names the stored session, so several operators can share one storage backend.
	Profile string `env:"AUTH_PROFILE" envDefault:"default"`
}

// Sanitize restores defaults for zero values.
func (c *AuthConfig) Sanitize() {
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = 30 * time.Second
	}
	if c.Profile = strings.TrimSpace(c.Profile); c.Profile == "" {
		c.Profile = "default"
	}
}
