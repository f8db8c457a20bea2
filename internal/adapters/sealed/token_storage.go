// Package sealed encrypts session values before they reach durable storage.
package sealed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/instantmart/admin-console/internal/data/cryptoutil"
	"github.com/instantmart/admin-console/internal/ports"
)

// TokenStorage wraps another ports.TokenStorage and seals every value with its
// key as the label. Values that cannot be opened are dropped from Load results,
// which the session layer treats as a partial session and purges.
type TokenStorage struct {
	inner  ports.TokenStorage
	sealer cryptoutil.Sealer
	logger *slog.Logger
}

var _ ports.TokenStorage = (*TokenStorage)(nil)

// NewTokenStorage wraps inner.
func NewTokenStorage(inner ports.TokenStorage, sealer cryptoutil.Sealer, logger *slog.Logger) *TokenStorage {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenStorage{inner: inner, sealer: sealer, logger: logger.With("component", "sealed_storage")}
}

func (s *TokenStorage) Load(ctx context.Context, keys ...string) (map[string]string, error) {
	raw, err := s.inner.Load(ctx, keys...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		pt, openErr := s.sealer.Open(k, v)
		if openErr != nil {
			s.logger.WarnContext(ctx, "dropping unreadable stored value", "key", k, "error", openErr)
			continue
		}
		out[k] = string(pt)
	}
	return out, nil
}

func (s *TokenStorage) Save(ctx context.Context, values map[string]string) error {
	sealed := make(map[string]string, len(values))
	for k, v := range values {
		if k == "" {
			// Let the backend report its own empty-key error.
			sealed[k] = v
			continue
		}
		enc, err := s.sealer.Seal(k, []byte(v))
		if err != nil {
			return fmt.Errorf("seal %s: %w", k, err)
		}
		sealed[k] = enc
	}
	return s.inner.Save(ctx, sealed)
}

func (s *TokenStorage) Clear(ctx context.Context, keys ...string) error {
	return s.inner.Clear(ctx, keys...)
}
