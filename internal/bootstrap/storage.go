package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/instantmart/admin-console/config"
	"github.com/instantmart/admin-console/internal/adapters/memory"
	redisadapter "github.com/instantmart/admin-console/internal/adapters/redis"
	"github.com/instantmart/admin-console/internal/adapters/sealed"
	"github.com/instantmart/admin-console/internal/data"
	"github.com/instantmart/admin-console/internal/data/cryptoutil"
	"github.com/instantmart/admin-console/internal/ports"
	"github.com/redis/go-redis/v9"
)

// StorageDeps lets callers supply already-open connections; missing ones are opened from config.
type StorageDeps struct {
	Config config.AppConfig
	DB     *sql.DB
	Redis  redis.UniversalClient
	Logger *slog.Logger
}

// TokenStorageHandle is the selected storage plus whatever must be closed with it.
type TokenStorageHandle struct {
	Storage ports.TokenStorage
	ping    func(ctx context.Context) error
	closers []func() error
}

// Ping checks that the backing store answers. The memory backend always does.
func (h *TokenStorageHandle) Ping(ctx context.Context) error {
	if h.ping == nil {
		return nil
	}
	return h.ping(ctx)
}

// Close releases connections opened by BuildTokenStorage. Connections passed in
// through StorageDeps are left open.
func (h *TokenStorageHandle) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}

// BuildTokenStorage selects the durable session storage named by STORAGE_BACKEND.
func BuildTokenStorage(ctx context.Context, deps StorageDeps) (*TokenStorageHandle, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	h := &TokenStorageHandle{}

	switch cfg.Storage.Backend {
	case config.StorageMemory, "":
		h.Storage = memory.NewTokenStorage()

	case config.StorageRedis:
		client := deps.Redis
		if client == nil {
			c, err := ConnectRedis(ctx, DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
			if err != nil {
				return nil, err
			}
			client = c
			h.closers = append(h.closers, c.Close)
		}
		h.ping = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		h.Storage = redisadapter.NewTokenStorage(client, redisadapter.TokenStorageOptions{
			Prefix:  cfg.Storage.KeyPrefix,
			Profile: cfg.Auth.Profile,
			TTL:     cfg.Storage.TTL,
		})

	case config.StoragePostgres:
		db := deps.DB
		if db == nil {
			d, err := ConnectDB(ctx, DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
			if err != nil {
				return nil, err
			}
			db = d
			h.closers = append(h.closers, d.Close)
		}
		if cfg.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, db, logger); err != nil {
				return nil, errors.Join(err, h.Close())
			}
		}
		h.ping = db.PingContext
		h.Storage = data.NewTokenStorageRepo(db, cfg.Auth.Profile)

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Storage.Encrypted() {
		key, err := cryptoutil.ParseKey(cfg.Storage.EncryptionKey)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("storage encryption key: %w", err), h.Close())
		}
		sealer, err := cryptoutil.NewAESGCMSealer(key)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("storage encryption: %w", err), h.Close())
		}
		h.Storage = sealed.NewTokenStorage(h.Storage, sealer, logger)
	}

	logger.InfoContext(ctx, "token storage ready",
		"backend", string(cfg.Storage.Backend),
		"profile", cfg.Auth.Profile,
		"encrypted", cfg.Storage.Encrypted(),
	)
	return h, nil
}
