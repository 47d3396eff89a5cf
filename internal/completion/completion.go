// Package completion abstracts the streaming chat completion source.
//
// A Streamer takes the ordered conversation history and lazily yields text
// fragments of the assistant's reply. Streams are finite, may fail
// mid-stream, and must stop promptly once the context is cancelled.
package completion

import (
	"context"
	"iter"

	"github.com/taurimind/server/internal/model"
)

// Role identifies the author of a history entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the history handed to the completion source.
type Message struct {
	Role    Role
	Content string
}

// Streamer produces a streaming completion for the given history.
//
// The returned sequence yields (fragment, nil) for each piece of generated
// text and terminates either normally (stream finished) or with a single
// ("", err) element on mid-stream failure. Context cancellation surfaces
// as an error wrapping context.Canceled.
type Streamer interface {
	Stream(ctx context.Context, ref model.Ref, history []Message) iter.Seq2[string, error]
}

// Preamble is the system instruction seeding every generation.
const Preamble = "You are a chat assistant. If you need to perform any formatting of your output, always use markdown (commonmark)."
