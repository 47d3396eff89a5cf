// Package conversation implements the conversation actor: the exclusive
// owner of one conversation's info and message history.
//
// Each actor processes requests for its identity strictly one at a time;
// the only long-lived operation, generation streaming, runs as a background
// task owned by the actor so the actor stays responsive while it streams.
package conversation

import (
	"github.com/google/uuid"

	"github.com/taurimind/server/internal/model"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation's append-only history. After a
// message is appended, the only permitted mutation is flipping HasError on
// a user message whose generation failed; content is never rewritten.
type Message struct {
	ID       uuid.UUID `json:"id"`
	Role     Role      `json:"role"`
	Content  string    `json:"content"`
	HasError bool      `json:"hasError"`
}

// Info describes a conversation. OwnerID never changes after
// initialization; Model may change via SwitchModel.
type Info struct {
	ID      uuid.UUID `json:"id"`
	OwnerID string    `json:"ownerId"`
	Model   model.Ref `json:"model"`
	Title   string    `json:"title"`
}

// historyState is the persisted shape of the message history.
type historyState struct {
	Messages []Message `json:"messages"`
}

// DefaultTitle is used when a conversation is created without an initial
// prompt.
const DefaultTitle = "New chat"

// titleLimit caps how much of the initial prompt becomes the title.
const titleLimit = 30

func titleFrom(initialPrompt string) string {
	if initialPrompt == "" {
		return DefaultTitle
	}
	runes := []rune(initialPrompt)
	if len(runes) > titleLimit {
		runes = runes[:titleLimit]
	}
	return string(runes)
}
