// Package user implements the per-user index actor: the exclusive owner of
// one user's list of conversations. It creates and deletes conversations
// through the conversation registry and forwards reads to the owning
// conversation actor.
package user

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/taurimind/server/internal/conversation"
	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/model"
	"github.com/taurimind/server/internal/store"
)

// indexState is the persisted shape of one user's conversation index.
type indexState struct {
	Conversations []conversation.Info `json:"conversations"`
}

// Index is the actor owning one user's conversation index. Like the
// conversation actor, all state transitions happen under mu; distinct users
// run concurrently. The index is created lazily on the first
// CreateConversation.
type Index struct {
	ownerID string

	mu            sync.Mutex
	activated     bool
	exists        bool
	conversations []conversation.Info

	store  store.Versioned
	convs  *conversation.Registry
	logger log.Logger
}

func newIndex(ownerID string, deps Deps) *Index {
	return &Index{
		ownerID: ownerID,
		store:   deps.Store,
		convs:   deps.Conversations,
		logger:  deps.Logger.With("component", "user", "user", ownerID),
	}
}

func (x *Index) key() string {
	return fmt.Sprintf("user/%s/conversations", x.ownerID)
}

// ensureActivated loads the persisted index on first use.
func (x *Index) ensureActivated(ctx context.Context) error {
	if x.activated {
		return nil
	}

	data, _, exists, err := x.store.Load(ctx, x.key())
	if err != nil {
		return err
	}
	if exists {
		var state indexState
		if err := json.Unmarshal(data, &state); err != nil {
			return fmt.Errorf("decode conversation index: %w", err)
		}
		x.conversations = state.Conversations
		x.exists = true
	}

	x.activated = true
	return nil
}

// OwnerID returns the index owner's id.
func (x *Index) OwnerID() string { return x.ownerID }

// CreateConversation allocates a fresh conversation id, initializes the
// conversation actor and records the resulting info in the index. When an
// initial prompt is given, the caller issues the matching Prompt after
// creation; initialization itself never generates.
func (x *Index) CreateConversation(ctx context.Context, ref model.Ref, initialPrompt string) (conversation.Info, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.ensureActivated(ctx); err != nil {
		return conversation.Info{}, err
	}

	conv, err := x.convs.Get(ctx, x.ownerID, uuid.New())
	if err != nil {
		return conversation.Info{}, err
	}
	info, err := conv.Initialize(ctx, ref, initialPrompt)
	if err != nil {
		return conversation.Info{}, err
	}

	appended := append(x.conversations, info)
	if err := x.save(ctx, appended); err != nil {
		return conversation.Info{}, err
	}
	x.conversations = appended
	x.exists = true

	return info, nil
}

// DeleteConversation removes a conversation from the index and deletes its
// actor. It reports false, without touching the conversation, when the id
// is not listed or the index does not exist yet.
func (x *Index) DeleteConversation(ctx context.Context, id uuid.UUID) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.ensureActivated(ctx); err != nil {
		return false, err
	}
	at := x.find(id)
	if !x.exists || at < 0 {
		return false, nil
	}

	conv, err := x.convs.Get(ctx, x.ownerID, id)
	if err != nil {
		return false, err
	}
	if err := conv.Delete(ctx); err != nil {
		return false, err
	}
	x.convs.Evict(x.ownerID, id)

	remaining := make([]conversation.Info, 0, len(x.conversations)-1)
	remaining = append(remaining, x.conversations[:at]...)
	remaining = append(remaining, x.conversations[at+1:]...)
	if err := x.save(ctx, remaining); err != nil {
		return false, err
	}
	x.conversations = remaining

	return true, nil
}

// GetConversations returns the user's conversations in creation order, or
// an empty list when no index exists.
func (x *Index) GetConversations(ctx context.Context) ([]conversation.Info, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.ensureActivated(ctx); err != nil {
		return nil, err
	}

	out := make([]conversation.Info, len(x.conversations))
	copy(out, x.conversations)
	return out, nil
}

// GetConversationMessages forwards the conditional history read to the
// conversation actor, or yields the empty result when the id is not listed.
func (x *Index) GetConversationMessages(ctx context.Context, id uuid.UUID, ifNoneMatch string) (conversation.HistoryResult, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.ensureActivated(ctx); err != nil {
		return conversation.HistoryResult{}, err
	}
	if !x.exists || x.find(id) < 0 {
		return conversation.EmptyHistory(), nil
	}

	conv, err := x.convs.Get(ctx, x.ownerID, id)
	if err != nil {
		return conversation.HistoryResult{}, err
	}
	return conv.GetMessages(ctx, ifNoneMatch)
}

// SwitchModel forwards the model switch to the conversation actor, or does
// nothing when the id is not listed.
func (x *Index) SwitchModel(ctx context.Context, id uuid.UUID, ref model.Ref) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.ensureActivated(ctx); err != nil {
		return err
	}
	if !x.exists || x.find(id) < 0 {
		return nil
	}

	conv, err := x.convs.Get(ctx, x.ownerID, id)
	if err != nil {
		return err
	}
	return conv.SwitchModel(ctx, ref)
}

// find returns the position of id in the index, or -1. Caller holds mu.
func (x *Index) find(id uuid.UUID) int {
	for i, info := range x.conversations {
		if info.ID == id {
			return i
		}
	}
	return -1
}

// save persists the given index content. Caller holds mu.
func (x *Index) save(ctx context.Context, conversations []conversation.Info) error {
	if conversations == nil {
		conversations = []conversation.Info{}
	}
	data, err := json.Marshal(indexState{Conversations: conversations})
	if err != nil {
		return fmt.Errorf("encode conversation index: %w", err)
	}
	if _, err := x.store.Save(ctx, x.key(), data); err != nil {
		return err
	}
	return nil
}
