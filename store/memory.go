package store

import (
	"bytes"
	"context"
	"sync"
)

// MemoryBackend keeps slots in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryBackend struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: make(map[string][]byte)}
}

func (m *MemoryBackend) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.slots[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(blob), nil
}

func (m *MemoryBackend) Swap(_ context.Context, key string, prev, next []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.slots[key]
	if !matches(cur, ok, prev) {
		return ErrConflict
	}
	m.slots[key] = bytes.Clone(next)
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}

// matches reports whether the current slot state satisfies a Swap precondition.
func matches(cur []byte, exists bool, prev []byte) bool {
	if prev == nil {
		return !exists
	}
	return exists && bytes.Equal(cur, prev)
}
