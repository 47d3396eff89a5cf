package conversation

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/taurimind/server/internal/completion"
	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/notify"
	"github.com/taurimind/server/internal/store"
)

// Deps are the collaborators shared by all conversation actors. The store
// and notifier tolerate concurrent calls from disjoint actors; there is no
// cross-actor transactionality.
type Deps struct {
	Store    store.Versioned
	Notifier notify.Notifier
	Streamer completion.Streamer
	Logger   log.Logger
}

// Registry keeps at most one live actor per (owner, conversation)
// identity, activating it lazily from the store on first use. This stands
// in for the actor-placement runtime: addressing a conversation always
// resolves to the single instance owning its state.
type Registry struct {
	deps Deps

	mu   sync.Mutex
	live map[string]*Conversation
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, live: make(map[string]*Conversation)}
}

func registryKey(ownerID string, id uuid.UUID) string {
	return ownerID + "/" + id.String()
}

// Get resolves the live actor for the identity, creating and activating it
// if needed. State is loaded from the store on first access.
func (r *Registry) Get(ctx context.Context, ownerID string, id uuid.UUID) (*Conversation, error) {
	key := registryKey(ownerID, id)

	r.mu.Lock()
	conv, ok := r.live[key]
	if !ok {
		conv = newConversation(id, ownerID, r.deps)
		r.live[key] = conv
	}
	r.mu.Unlock()

	// Activation runs under the actor's own lock so a slow load never
	// blocks unrelated actors.
	conv.mu.Lock()
	err := conv.ensureActivated(ctx)
	conv.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Evict drops the live instance for the identity. Used after Delete so a
// later Get activates a fresh (empty) actor.
func (r *Registry) Evict(ownerID string, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, registryKey(ownerID, id))
}
