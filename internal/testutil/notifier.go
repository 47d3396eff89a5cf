package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Notification is one recorded Notify call.
type Notification struct {
	UserID  string
	Event   string
	Payload any
}

// RecorderNotifier records notifications in emission order.
// It implements notify.Notifier and is safe for concurrent use.
type RecorderNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

// Notify implements notify.Notifier.
func (r *RecorderNotifier) Notify(_ context.Context, userID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, Notification{UserID: userID, Event: event, Payload: payload})
}

// All returns a snapshot of everything recorded so far.
func (r *RecorderNotifier) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

// Named returns the recorded notifications with the given event name.
func (r *RecorderNotifier) Named(event string) []Notification {
	var out []Notification
	for _, n := range r.All() {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

// WaitFor polls until a notification with the given event name appears and
// returns the first one. Generations run in the background, so tests need
// to wait for their terminal events.
func (r *RecorderNotifier) WaitFor(t *testing.T, event string) Notification {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if notes := r.Named(event); len(notes) > 0 {
			return notes[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q notification; recorded: %+v", event, r.All())
	return Notification{}
}
