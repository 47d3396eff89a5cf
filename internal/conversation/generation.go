package conversation

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/taurimind/server/internal/completion"
	"github.com/taurimind/server/internal/model"
	"github.com/taurimind/server/internal/notify"
)

// runGeneration is the background task of one Prompt call. It appends and
// persists the user message, streams the completion, and on success appends
// and persists the assistant message. Every persist happens before its
// notification. A cancelled generation stops without persisting anything
// beyond the user message and without notifying.
func (c *Conversation) runGeneration(ctx context.Context, g *generation, prompt string) {
	ref, history, ok := c.acceptPrompt(ctx, g, prompt)
	if !ok {
		return
	}

	c.notifier.Notify(ctx, c.ownerID, notify.EventMessageStart, StartPayload{ConversationID: c.id})

	var buf strings.Builder
	var streamErr error
	for fragment, err := range c.streamer.Stream(ctx, ref, history) {
		if err != nil {
			streamErr = err
			break
		}
		buf.WriteString(fragment)
		c.notifier.Notify(ctx, c.ownerID, notify.EventMessageContent, ContentPayload{
			ConversationID: c.id,
			MessageID:      g.responseID,
			Fragment:       fragment,
		})
	}

	if ctx.Err() != nil {
		// Cancelled: end silently. History keeps only the user message.
		c.release(g)
		return
	}
	if streamErr != nil {
		c.failPrompt(ctx, g, streamErr)
		return
	}
	c.completePrompt(ctx, g, buf.String())
}

// acceptPrompt appends the user message, persists it and emits
// PromptReceived. It returns the model and the completion history for the
// stream, or ok=false when the generation was superseded or persistence
// failed.
func (c *Conversation) acceptPrompt(ctx context.Context, g *generation, prompt string) (model.Ref, []completion.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != g || c.deleted || c.info == nil {
		return model.Ref{}, nil, false
	}

	userMsg := Message{ID: uuid.New(), Role: RoleUser, Content: prompt}
	g.userMessageID = userMsg.ID
	appended := append(c.messages, userMsg)

	tag, err := c.saveHistory(ctx, appended)
	if err != nil {
		c.logger.Error("failed to persist user message", "error", err)
		c.gen = nil
		return model.Ref{}, nil, false
	}
	c.messages = appended
	c.historyTag = tag
	c.historyExists = true

	c.notifier.Notify(ctx, c.ownerID, notify.EventPromptReceived, PromptPayload{
		ConversationID: c.id,
		Message:        userMsg,
		ETag:           tag,
	})

	history := make([]completion.Message, 0, len(c.messages)+1)
	history = append(history, completion.Message{Role: completion.RoleSystem, Content: completion.Preamble})
	for _, m := range c.messages {
		role := completion.RoleUser
		if m.Role == RoleAssistant {
			role = completion.RoleAssistant
		}
		history = append(history, completion.Message{Role: role, Content: m.Content})
	}

	return c.info.Model, history, true
}

// completePrompt appends the assistant message built from the streamed
// fragments, persists it and emits MessageEnd.
func (c *Conversation) completePrompt(ctx context.Context, g *generation, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != g || c.deleted {
		return
	}

	asstMsg := Message{ID: g.responseID, Role: RoleAssistant, Content: content}
	appended := append(c.messages, asstMsg)

	tag, err := c.saveHistory(ctx, appended)
	if err != nil {
		c.logger.Error("failed to persist assistant message", "error", err)
		c.gen = nil
		return
	}
	c.messages = appended
	c.historyTag = tag
	c.gen = nil

	c.notifier.Notify(ctx, c.ownerID, notify.EventMessageEnd, EndPayload{
		ConversationID: c.id,
		Message:        asstMsg,
		ETag:           tag,
	})
}

// failPrompt recovers from a mid-stream upstream failure: the triggering
// user message is flagged, the flip persisted, and MessageError emitted.
// The conversation returns to Active and stays usable.
func (c *Conversation) failPrompt(ctx context.Context, g *generation, streamErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != g || c.deleted {
		return
	}
	c.logger.Error("generation failed", "error", streamErr)

	flagged := make([]Message, len(c.messages))
	copy(flagged, c.messages)
	for i := range flagged {
		if flagged[i].ID == g.userMessageID {
			flagged[i].HasError = true
		}
	}

	tag, err := c.saveHistory(ctx, flagged)
	if err != nil {
		c.logger.Error("failed to persist error flag", "error", err)
		c.gen = nil
		return
	}
	c.messages = flagged
	c.historyTag = tag
	c.gen = nil

	c.notifier.Notify(ctx, c.ownerID, notify.EventMessageError, ErrorPayload{
		ConversationID: c.id,
		MessageID:      g.userMessageID,
		ETag:           tag,
	})
}

// release clears the generation handle if it is still the live one.
func (c *Conversation) release(g *generation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == g {
		c.gen = nil
	}
}
