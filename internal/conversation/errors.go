package conversation

import "errors"

// Sentinel errors surfaced to callers. Checked with errors.Is.
var (
	// ErrAlreadyInitialized indicates Initialize was called on a
	// conversation that is already initialized. Callers must not retry;
	// this points at a logic or replay bug upstream.
	ErrAlreadyInitialized = errors.New("conversation already initialized")

	// ErrNotInitialized indicates an operation other than Initialize was
	// attempted on an uninitialized conversation.
	ErrNotInitialized = errors.New("conversation not initialized")

	// ErrGenerationInFlight indicates a Prompt arrived while another
	// generation was active. The new prompt is rejected, not queued.
	ErrGenerationInFlight = errors.New("another generation is in flight")
)
