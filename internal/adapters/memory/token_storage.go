// Package memory provides a process-local TokenStorage. Sessions kept here end
// with the process.
package memory

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/instantmart/admin-console/internal/ports"
)

// ErrEmptyKey is returned when Save is given an empty key.
var ErrEmptyKey = errors.New("memory: storage key must not be empty")

// TokenStorage implements ports.TokenStorage over a map.
type TokenStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ ports.TokenStorage = (*TokenStorage)(nil)

// NewTokenStorage returns an empty storage.
func NewTokenStorage() *TokenStorage {
	return &TokenStorage{values: make(map[string]string)}
}

// Load returns the stored values for keys.
func (s *TokenStorage) Load(_ context.Context, keys ...string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Save writes every entry or none.
func (s *TokenStorage) Save(_ context.Context, values map[string]string) error {
	if _, ok := values[""]; ok {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.values, values)
	return nil
}

// Clear removes keys.
func (s *TokenStorage) Clear(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}
