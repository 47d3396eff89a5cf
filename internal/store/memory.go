package store

import (
	"context"
	"sync"
)

// Memory is an in-memory Versioned implementation. Used in tests and when
// the server runs without a database configured.
//
// Memory is safe for concurrent use by multiple goroutines.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	state []byte
	etag  string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry)}
}

// Load implements Versioned.
func (m *Memory) Load(_ context.Context, key string) ([]byte, string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, "", false, nil
	}
	state := make([]byte, len(e.state))
	copy(state, e.state)
	return state, e.etag, true, nil
}

// Save implements Versioned.
func (m *Memory) Save(_ context.Context, key string, state []byte) (string, error) {
	stored := make([]byte, len(state))
	copy(stored, state)
	etag := ETag(stored)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{state: stored, etag: etag}
	return etag, nil
}

// Clear implements Versioned.
func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
