package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/taurimind/server/internal/completion"
	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/model"
	"github.com/taurimind/server/internal/notify"
	"github.com/taurimind/server/internal/store"
)

// Conversation is the actor owning one conversation. All state transitions
// happen under mu, which reproduces the single-writer-per-entity guarantee:
// no two operations on the same conversation observe interleaved state.
//
// Lifecycle: Uninitialized -> Active <-> Generating -> Active -> Deleted.
type Conversation struct {
	id      uuid.UUID
	ownerID string

	mu            sync.Mutex
	activated     bool
	info          *Info // nil while uninitialized
	messages      []Message
	historyTag    string
	historyExists bool
	deleted       bool
	gen           *generation // nil while no generation is in flight

	store    store.Versioned
	notifier notify.Notifier
	streamer completion.Streamer
	logger   log.Logger
}

// generation is the live handle of an in-flight background generation.
// At most one handle is live per conversation; a superseded handle detects
// staleness by pointer identity against Conversation.gen and then skips
// all side effects.
type generation struct {
	cancel        context.CancelFunc
	responseID    uuid.UUID
	userMessageID uuid.UUID // set once the user message is appended
}

func newConversation(id uuid.UUID, ownerID string, deps Deps) *Conversation {
	return &Conversation{
		id:       id,
		ownerID:  ownerID,
		store:    deps.Store,
		notifier: deps.Notifier,
		streamer: deps.Streamer,
		logger:   deps.Logger.With("component", "conversation", "conversation", id.String()),
	}
}

func (c *Conversation) infoKey() string {
	return fmt.Sprintf("conversation/%s/%s/info", c.ownerID, c.id)
}

func (c *Conversation) historyKey() string {
	return fmt.Sprintf("conversation/%s/%s/messages", c.ownerID, c.id)
}

// ensureActivated loads persisted state on first use. Repeated failures
// retry on the next call; success is sticky.
func (c *Conversation) ensureActivated(ctx context.Context) error {
	if c.activated {
		return nil
	}

	data, _, exists, err := c.store.Load(ctx, c.infoKey())
	if err != nil {
		return err
	}
	if exists {
		var info Info
		if err := json.Unmarshal(data, &info); err != nil {
			return fmt.Errorf("decode conversation info: %w", err)
		}
		c.info = &info
	}

	data, etag, exists, err := c.store.Load(ctx, c.historyKey())
	if err != nil {
		return err
	}
	if exists {
		var hist historyState
		if err := json.Unmarshal(data, &hist); err != nil {
			return fmt.Errorf("decode message history: %w", err)
		}
		c.messages = hist.Messages
		c.historyTag = etag
		c.historyExists = true
	}

	c.activated = true
	return nil
}

// ID returns the conversation id.
func (c *Conversation) ID() uuid.UUID { return c.id }

// OwnerID returns the owning user's id.
func (c *Conversation) OwnerID() string { return c.ownerID }

// Initialize sets up a fresh conversation: info and an empty history are
// persisted, then the owner's sessions are notified of ConversationCreated.
// A second call fails with ErrAlreadyInitialized.
func (c *Conversation) Initialize(ctx context.Context, ref model.Ref, initialPrompt string) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureActivated(ctx); err != nil {
		return Info{}, err
	}
	if c.deleted || c.info != nil || c.historyExists {
		return Info{}, ErrAlreadyInitialized
	}

	info := Info{
		ID:      c.id,
		OwnerID: c.ownerID,
		Model:   ref,
		Title:   titleFrom(initialPrompt),
	}

	if err := c.saveInfo(ctx, info); err != nil {
		return Info{}, err
	}
	c.info = &info

	tag, err := c.saveHistory(ctx, nil)
	if err != nil {
		return Info{}, err
	}
	c.historyTag = tag
	c.historyExists = true

	c.notifier.Notify(ctx, c.ownerID, notify.EventConversationCreated, info)
	return info, nil
}

// SwitchModel changes the conversation's model. Switching to the model
// already in use, or switching an uninitialized or deleted conversation,
// is a no-op with no persistence and no notification.
func (c *Conversation) SwitchModel(ctx context.Context, ref model.Ref) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureActivated(ctx); err != nil {
		return err
	}
	if c.deleted || c.info == nil || ref.Name == c.info.Model.Name {
		return nil
	}

	updated := *c.info
	updated.Model = ref
	if err := c.saveInfo(ctx, updated); err != nil {
		return err
	}
	c.info = &updated

	c.notifier.Notify(ctx, c.ownerID, notify.EventConversationInfoUpdated, updated)
	return nil
}

// Prompt starts an asynchronous generation for the given user text and
// returns immediately; completion is observed through notifications.
// Fails with ErrGenerationInFlight while a prior generation is active.
func (c *Conversation) Prompt(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureActivated(ctx); err != nil {
		return err
	}
	if c.deleted || c.info == nil {
		return ErrNotInitialized
	}
	if c.gen != nil {
		return ErrGenerationInFlight
	}

	// The generation outlives the request; only Delete cancels it.
	genCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g := &generation{cancel: cancel, responseID: uuid.New()}
	c.gen = g

	go c.runGeneration(genCtx, g, text)
	return nil
}

// GetMessages is the conditional history read. A conversation with no
// message activity yields Empty; a matching tag yields NotModified; any
// other call yields the full sequence with its current tag.
func (c *Conversation) GetMessages(ctx context.Context, ifNoneMatch string) (HistoryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureActivated(ctx); err != nil {
		return HistoryResult{}, err
	}
	if c.deleted || !c.historyExists || len(c.messages) == 0 {
		return EmptyHistory(), nil
	}
	if ifNoneMatch != "" && ifNoneMatch == c.historyTag {
		return NotModified(c.historyTag), nil
	}

	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return FullHistory(msgs, c.historyTag), nil
}

// Delete cancels any in-flight generation, clears all persisted state,
// notifies ConversationDeleted and retires the actor. Deleting twice is a
// no-op.
func (c *Conversation) Delete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleted {
		return nil
	}
	if c.gen != nil {
		c.gen.cancel()
		c.gen = nil
	}

	if err := c.store.Clear(ctx, c.infoKey()); err != nil {
		return err
	}
	if err := c.store.Clear(ctx, c.historyKey()); err != nil {
		return err
	}

	c.deleted = true
	c.info = nil
	c.messages = nil
	c.historyTag = ""
	c.historyExists = false

	c.notifier.Notify(ctx, c.ownerID, notify.EventConversationDeleted, DeletedPayload{ConversationID: c.id})
	return nil
}

// saveInfo persists conversation info. Caller holds mu.
func (c *Conversation) saveInfo(ctx context.Context, info Info) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode conversation info: %w", err)
	}
	if _, err := c.store.Save(ctx, c.infoKey(), data); err != nil {
		return err
	}
	return nil
}

// saveHistory persists the message history and returns its new version
// tag. Caller holds mu.
func (c *Conversation) saveHistory(ctx context.Context, messages []Message) (string, error) {
	if messages == nil {
		messages = []Message{}
	}
	data, err := json.Marshal(historyState{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("encode message history: %w", err)
	}
	return c.store.Save(ctx, c.historyKey(), data)
}
