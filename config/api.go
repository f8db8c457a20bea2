package config

import (
	"strings"
	"time"
)

// APIConfig points the console at the InstantMart backend.
type APIConfig struct {
	// BaseURL is the API root, e.g. "https://api.instantmart.example/api".
	BaseURL string        `env:"API_BASE_URL"  envDefault:"http://localhost:5000/api"`
	Timeout time.Duration `env:"API_TIMEOUT"   envDefault:"30s"`
	// Origin is sent as the Origin header when set.
	Origin string `env:"API_ORIGIN"`
	// CORSMode is sent as Sec-Fetch-Mode.
	CORSMode string `env:"API_CORS_MODE" envDefault:"cors"`
}

// Sanitize trims the base URL and restores defaults for zero values.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Origin = strings.TrimSpace(c.Origin)
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if strings.TrimSpace(c.CORSMode) == "" {
		c.CORSMode = "cors"
	}
}

// RealtimeConfig controls the notification websocket.
type RealtimeConfig struct {
	// URL of the notification hub; empty disables realtime delivery.
	URL                  string        `env:"REALTIME_URL"`
	ReconnectInterval    time.Duration `env:"REALTIME_RECONNECT_INTERVAL"     envDefault:"2s"`
	ReconnectBurst       int           `env:"REALTIME_RECONNECT_BURST"        envDefault:"1"`
	MaxReconnectAttempts int           `env:"REALTIME_MAX_RECONNECT_ATTEMPTS" envDefault:"0"`
}

// Sanitize clamps reconnect pacing to usable values.
func (c *RealtimeConfig) Sanitize() {
	c.URL = strings.TrimSpace(c.URL)
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = 2 * time.Second
	}
	if c.ReconnectBurst < 1 {
		c.ReconnectBurst = 1
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
}

// Enabled reports whether a realtime URL is configured.
func (c *RealtimeConfig) Enabled() bool { return c.URL != "" }

// NotificationsConfig tunes the notification cache.
type NotificationsConfig struct {
	PageSize int `env:"NOTIFICATIONS_PAGE_SIZE" envDefault:"20"`
}

// Sanitize keeps the page size within what the backend accepts.
func (c *NotificationsConfig) Sanitize() {
	if c.PageSize < 1 {
		c.PageSize = 20
	}
	if c.PageSize > 100 {
		c.PageSize = 100
	}
}
