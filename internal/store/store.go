// Package store provides durable, versioned per-key state for actors.
//
// Each actor persists its state as a single JSON document under a unique
// key. Every document carries a version tag (ETag) computed from its
// content; the tag changes if and only if the content changes, which is
// what the conditional fetch protocol relies on.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrPersistence indicates a store operation failed. Callers should treat
// in-memory and durable state as possibly diverged until a later save
// succeeds. Not retried automatically.
var ErrPersistence = errors.New("persistence failure")

// Versioned is the durable store contract. Implementations must tolerate
// concurrent calls for distinct keys; there is no cross-key transactionality.
type Versioned interface {
	// Load returns the stored state and its version tag.
	// exists is false when the key has never been saved (or was cleared).
	Load(ctx context.Context, key string) (state []byte, etag string, exists bool, err error)

	// Save writes state under key and returns the new version tag.
	Save(ctx context.Context, key string, state []byte) (etag string, err error)

	// Clear removes the key. Clearing an absent key is not an error.
	Clear(ctx context.Context, key string) error
}

// ETag computes the version tag for a state document: a hex SHA-256 of the
// content. Deterministic, so identical documents always get identical tags
// even across uncoordinated writers.
func ETag(state []byte) string {
	sum := sha256.Sum256(state)
	return hex.EncodeToString(sum[:])
}
