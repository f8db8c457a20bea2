package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrEmptyStorageKey is returned when Save is given an empty key.
	ErrEmptyStorageKey = errors.New("storage key cannot be empty")
)
