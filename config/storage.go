package config

import (
	"fmt"
	"strings"
	"time"
)

// StorageBackend selects where the session tokens are kept between runs.
type StorageBackend string

const (
	// StorageMemory keeps tokens in process memory only.
	StorageMemory StorageBackend = "memory"
	// StorageRedis keeps tokens in Redis.
	StorageRedis StorageBackend = "redis"
	// StoragePostgres keeps tokens in the client_storage table.
	StoragePostgres StorageBackend = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageBackend.
func (b *StorageBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis", "postgres":
		*b = StorageBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageBackend: %q (valid options: memory, redis, postgres)", v)
	}
}

// StorageConfig configures durable token storage.
type StorageConfig struct {
	Backend   StorageBackend `env:"STORAGE_BACKEND"    envDefault:"memory"`
	KeyPrefix string         `env:"STORAGE_KEY_PREFIX" envDefault:"instantmart:console:"`
	// TTL expires Redis keys; zero keeps them until logout.
	TTL time.Duration `env:"STORAGE_TTL" envDefault:"0s"`
	// EncryptionKey is a base64 32-byte key. When set, stored values are sealed with AES-256-GCM.
	EncryptionKey string `env:"STORAGE_ENCRYPTION_KEY"`
}

// Sanitize restores defaults for zero values.
func (c *StorageConfig) Sanitize() {
	if c.Backend == "" {
		c.Backend = StorageMemory
	}
	if c.TTL < 0 {
		c.TTL = 0
	}
	c.EncryptionKey = strings.TrimSpace(c.EncryptionKey)
}

// Encrypted reports whether stored values are sealed.
func (c *StorageConfig) Encrypted() bool { return c.EncryptionKey != "" }
