// Package testutil provides shared test doubles for the taurimind server:
// a scripted completion streamer, a recording notifier, and a PostgreSQL
// test container helper.
package testutil

import (
	"context"
	"iter"
	"sync"

	"github.com/taurimind/server/internal/completion"
	"github.com/taurimind/server/internal/model"
)

// ScriptedStreamer is a completion.Streamer that plays back a fixed script.
// It yields Fragments in order, then ends the stream — or yields Err after
// the fragments when Err is set. Context cancellation is observed between
// fragments, like a real streaming client.
type ScriptedStreamer struct {
	Fragments []string
	Err       error

	// Gate, when non-nil, blocks the stream before each fragment until a
	// value is received (or the context is cancelled). Lets tests hold a
	// generation mid-flight.
	Gate chan struct{}

	mu          sync.Mutex
	lastHistory []completion.Message
	lastRef     model.Ref
	calls       int
}

// Stream implements completion.Streamer.
func (s *ScriptedStreamer) Stream(ctx context.Context, ref model.Ref, history []completion.Message) iter.Seq2[string, error] {
	s.mu.Lock()
	s.lastHistory = append([]completion.Message(nil), history...)
	s.lastRef = ref
	s.calls++
	s.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, fragment := range s.Fragments {
			if !s.wait(ctx) {
				yield("", ctx.Err())
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
		if !s.wait(ctx) {
			yield("", ctx.Err())
			return
		}
		if s.Err != nil {
			yield("", s.Err)
		}
	}
}

func (s *ScriptedStreamer) wait(ctx context.Context) bool {
	if s.Gate == nil {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.Gate:
		return true
	}
}

// LastHistory returns the history passed to the most recent Stream call.
func (s *ScriptedStreamer) LastHistory() []completion.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]completion.Message(nil), s.lastHistory...)
}

// LastRef returns the model ref of the most recent Stream call.
func (s *ScriptedStreamer) LastRef() model.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRef
}

// Calls returns how many times Stream was invoked.
func (s *ScriptedStreamer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
