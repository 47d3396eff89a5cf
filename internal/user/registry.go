package user

import (
	"context"
	"sync"

	"github.com/taurimind/server/internal/conversation"
	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/store"
)

// Deps are the collaborators shared by all user index actors.
type Deps struct {
	Store         store.Versioned
	Conversations *conversation.Registry
	Logger        log.Logger
}

// Registry keeps at most one live index actor per user, activating it
// lazily from the store on first use.
type Registry struct {
	deps Deps

	mu   sync.Mutex
	live map[string]*Index
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, live: make(map[string]*Index)}
}

// Get resolves the live index actor for the user, creating and activating
// it if needed.
func (r *Registry) Get(ctx context.Context, ownerID string) (*Index, error) {
	r.mu.Lock()
	idx, ok := r.live[ownerID]
	if !ok {
		idx = newIndex(ownerID, r.deps)
		r.live[ownerID] = idx
	}
	r.mu.Unlock()

	idx.mu.Lock()
	err := idx.ensureActivated(ctx)
	idx.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Evict drops the live index for the user.
func (r *Registry) Evict(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, ownerID)
}
