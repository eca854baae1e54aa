package storage

import (
	"context"
	"fmt"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory is an in-memory Store. A positive quota bounds the total size of all
// stored values, mimicking a browser-style storage limit.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	quota  int
	writes int
	// FailWith, when set, is returned by every Set and Remove.
	FailWith error
}

// NewMemory creates an empty Memory store without a quota.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// NewMemoryWithQuota creates a Memory store that rejects writes once the
// total stored bytes would exceed quota.
func NewMemoryWithQuota(quota int) *Memory {
	m := NewMemory()
	m.quota = quota
	return m
}

// Get returns a copy of the stored value.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	if m.quota > 0 {
		size := len(value)
		for k, v := range m.data {
			if k != key {
				size += len(v)
			}
		}
		if size > m.quota {
			return fmt.Errorf("writing %q (%d bytes): %w", key, len(value), ErrQuotaExceeded)
		}
	}

	m.data[key] = append([]byte(nil), value...)
	m.writes++
	return nil
}

// Remove deletes key.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	delete(m.data, key)
	return nil
}

// Writes returns the number of successful Set calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
