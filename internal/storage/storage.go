// Package storage provides the key-value persistence port used by the engine.
package storage

import (
	"context"
	"errors"
)

// Fixed keys used by the engine.
const (
	KeyModifications = "matchplan.modifications"
	KeyHistory       = "matchplan.history"
)

// ErrQuotaExceeded is returned when a write would exceed the store capacity.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store is a synchronous key-value store.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
