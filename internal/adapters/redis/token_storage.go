package redis

// Package redis provides Redis-backed adapters for the admin console.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces console keys inside a shared Redis.
const DefaultKeyPrefix = "instantmart:console:"

// TokenStorage is a Redis-backed ports.TokenStorage.
// Keys are stored as <prefix><profile>:<key> so several operator profiles can share one Redis.
type TokenStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// TokenStorageOptions groups optional settings for NewTokenStorage.
type TokenStorageOptions struct {
	// Prefix overrides DefaultKeyPrefix.
	Prefix string
	// Profile separates independent operator sessions. Defaults to "default".
	Profile string
	// TTL expires stored keys; zero keeps them until cleared.
	TTL time.Duration
}

// NewTokenStorage creates a Redis token storage.
func NewTokenStorage(client redis.UniversalClient, opts TokenStorageOptions) *TokenStorage {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	profile := opts.Profile
	if profile == "" {
		profile = "default"
	}
	return &TokenStorage{
		client: client,
		prefix: prefix + profile + ":",
		ttl:    opts.TTL,
	}
}

// Load returns the stored values for keys; absent keys are omitted.
func (s *TokenStorage) Load(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := s.client.MGet(ctx, s.keys(keys)...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("redis mget: unexpected %T for %s", v, keys[i])
		}
		out[keys[i]] = str
	}
	return out, nil
}

// Save writes every entry inside one MULTI/EXEC transaction.
func (s *TokenStorage) Save(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			if k == "" {
				return errors.New("storage key cannot be empty")
			}
			pipe.Set(ctx, s.prefix+k, v, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

// Clear deletes keys. Missing keys are ignored.
func (s *TokenStorage) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, s.keys(keys)...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *TokenStorage) keys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.prefix + k
	}
	return out
}
