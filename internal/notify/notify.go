// Package notify pushes named events to all active sessions of a user.
//
// Delivery is fire-and-forget and best effort: the actors never wait for,
// or learn about, subscriber outcomes. Subscribers that need a consistent
// view re-fetch through the conditional fetch protocol after an event.
//
// The in-process implementation fans events out over a Watermill gochannel
// pub/sub, one topic per user; the SSE endpoint subscribes to the caller's
// topic and forwards events to the browser.
package notify

import "context"

// Event names pushed to a conversation's owner.
const (
	EventConversationCreated     = "ConversationCreated"
	EventConversationDeleted     = "ConversationDeleted"
	EventConversationInfoUpdated = "ConversationInfoUpdated"
	EventMessageStart            = "MessageStart"
	EventMessageContent          = "MessageContent"
	EventPromptReceived          = "PromptReceived"
	EventMessageEnd              = "MessageEnd"
	EventMessageError            = "MessageError"
)

// Notifier delivers a named event with a JSON-serializable payload to every
// session belonging to userID. Implementations must be safe for concurrent
// use and must never block the caller on slow subscribers.
type Notifier interface {
	Notify(ctx context.Context, userID string, event string, payload any)
}

// Nop discards all notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string, string, any) {}
