package conversation

import "github.com/google/uuid"

// Notification payloads pushed to the conversation owner's sessions.
// Info serves directly as the payload of ConversationCreated and
// ConversationInfoUpdated.

// DeletedPayload accompanies ConversationDeleted.
type DeletedPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

// StartPayload accompanies MessageStart.
type StartPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

// ContentPayload accompanies MessageContent: one streamed fragment of the
// assistant message identified by MessageID.
type ContentPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
	Fragment       string    `json:"fragment"`
}

// PromptPayload accompanies PromptReceived: the persisted user message and
// the history tag after its append.
type PromptPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	Message        Message   `json:"message"`
	ETag           string    `json:"etag"`
}

// EndPayload accompanies MessageEnd: the complete assistant message and
// the history tag after its append.
type EndPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	Message        Message   `json:"message"`
	ETag           string    `json:"etag"`
}

// ErrorPayload accompanies MessageError: the user message flagged with an
// error and the history tag after the flip.
type ErrorPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
	ETag           string    `json:"etag"`
}
