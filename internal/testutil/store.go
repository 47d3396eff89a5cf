package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/taurimind/server/internal/store"
)

// ErrSaveFailed is returned by FlakyStore when saves are failing.
var ErrSaveFailed = errors.New("save failed")

// FlakyStore wraps a Versioned store and fails Save on demand. Used to
// exercise the persistence-failure paths.
type FlakyStore struct {
	store.Versioned

	mu       sync.Mutex
	failSave bool
}

// NewFlakyStore wraps the given store.
func NewFlakyStore(inner store.Versioned) *FlakyStore {
	return &FlakyStore{Versioned: inner}
}

// FailSaves toggles whether Save fails.
func (f *FlakyStore) FailSaves(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave = fail
}

// Save implements store.Versioned.
func (f *FlakyStore) Save(ctx context.Context, key string, state []byte) (string, error) {
	f.mu.Lock()
	fail := f.failSave
	f.mu.Unlock()
	if fail {
		return "", ErrSaveFailed
	}
	return f.Versioned.Save(ctx, key, state)
}
