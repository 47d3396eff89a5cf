package notify

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/taurimind/server/internal/log"
)

func receiveOne(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus(log.NewNop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "alice")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	bus.Notify(ctx, "alice", EventMessageStart, map[string]string{"conversationId": "c1"})

	msg := receiveOne(t, ch)
	if got := msg.Metadata.Get(MetadataEvent); got != EventMessageStart {
		t.Errorf("event metadata = %q, want %q", got, EventMessageStart)
	}
	if string(msg.Payload) != `{"conversationId":"c1"}` {
		t.Errorf("payload = %s", msg.Payload)
	}
}

func TestBusIsolatesUsers(t *testing.T) {
	bus := NewBus(log.NewNop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aliceCh, err := bus.Subscribe(ctx, "alice")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	bus.Notify(ctx, "bob", EventMessageStart, nil)
	bus.Notify(ctx, "alice", EventMessageEnd, nil)

	msg := receiveOne(t, aliceCh)
	if got := msg.Metadata.Get(MetadataEvent); got != EventMessageEnd {
		t.Errorf("alice received %q, want only her own %q", got, EventMessageEnd)
	}
}

func TestBusNotifyWithoutSubscribers(t *testing.T) {
	bus := NewBus(log.NewNop())
	defer bus.Close()

	// Fire-and-forget: must not block or panic with nobody listening.
	done := make(chan struct{})
	go func() {
		bus.Notify(context.Background(), "nobody", EventMessageContent, map[string]string{"fragment": "hi"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked with no subscribers")
	}
}

func TestBusPreservesOrder(t *testing.T) {
	bus := NewBus(log.NewNop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "alice")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	const fragments = 50
	for i := range fragments {
		bus.Notify(ctx, "alice", EventMessageContent, map[string]string{"fragment": strconv.Itoa(i)})
	}

	for i := range fragments {
		msg := receiveOne(t, ch)
		want := `{"fragment":"` + strconv.Itoa(i) + `"}`
		if got := string(msg.Payload); got != want {
			t.Fatalf("fragment %d = %s, want %s", i, got, want)
		}
	}
}

func TestBusSlowConsumerDoesNotStallOtherUsers(t *testing.T) {
	bus := NewBus(log.NewNop())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bobCh, err := bus.Subscribe(ctx, "bob")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	aliceCh, err := bus.Subscribe(ctx, "alice")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	bus.Notify(ctx, "bob", EventMessageContent, map[string]string{"fragment": "1"})
	bus.Notify(ctx, "bob", EventMessageContent, map[string]string{"fragment": "2"})
	bus.Notify(ctx, "alice", EventMessageEnd, nil)

	// Bob receives but never acks, pinning his dispatch worker.
	select {
	case <-bobCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bob's first event")
	}

	msg := receiveOne(t, aliceCh)
	if got := msg.Metadata.Get(MetadataEvent); got != EventMessageEnd {
		t.Errorf("alice received %q, want %q", got, EventMessageEnd)
	}
}
