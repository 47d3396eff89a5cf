package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/taurimind/server/internal/log"
)

// MetadataEvent is the message metadata key carrying the event name.
const MetadataEvent = "event"

// UserTopic returns the pub/sub topic for a user's sessions.
func UserTopic(userID string) string {
	return "user." + userID
}

// Bus is the in-process Notifier. Events are published to a per-user topic
// on a Watermill gochannel pub/sub; any number of sessions may subscribe.
//
// Notify itself only enqueues and never blocks the caller. A single
// dispatch worker per user drains that user's queue and publishes one
// message at a time, waiting for subscriber acknowledgement, so each
// subscriber receives a user's events in emission order. A user with no
// subscribed sessions simply loses the event, which is the contract.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger log.Logger

	mu      sync.Mutex
	queues  map[string]*dispatchQueue
	closed  bool
	closing chan struct{}
	wg      sync.WaitGroup
}

// dispatchQueue holds one user's undelivered events. wake has capacity 1;
// a send is only a hint that pending is non-empty.
type dispatchQueue struct {
	mu      sync.Mutex
	pending []*message.Message
	wake    chan struct{}
}

// NewBus creates the event bus.
func NewBus(logger log.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, watermill.NewSlogLogger(logger)),
		logger:  logger.With("component", "notify"),
		queues:  make(map[string]*dispatchQueue),
		closing: make(chan struct{}),
	}
}

// Notify implements Notifier. Marshal failures are logged and swallowed;
// a lost notification must never fail the mutation that triggered it.
func (b *Bus) Notify(_ context.Context, userID string, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("failed to marshal event payload", "event", event, "error", err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataEvent, event)

	b.enqueue(userID, msg)
}

func (b *Bus) enqueue(userID string, msg *message.Message) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	q, ok := b.queues[userID]
	if !ok {
		q = &dispatchQueue{wake: make(chan struct{}, 1)}
		b.queues[userID] = q
		b.wg.Add(1)
		go b.dispatch(UserTopic(userID), q)
	}
	b.mu.Unlock()

	q.mu.Lock()
	q.pending = append(q.pending, msg)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// dispatch is the per-user worker. Publishing blocks until every current
// subscriber has acked, which is what keeps delivery ordered; closing the
// pub/sub unblocks a stuck publish.
func (b *Bus) dispatch(topic string, q *dispatchQueue) {
	defer b.wg.Done()
	for {
		select {
		case <-b.closing:
			return
		case <-q.wake:
		}
		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				q.mu.Unlock()
				break
			}
			msg := q.pending[0]
			q.pending = q.pending[1:]
			q.mu.Unlock()

			if err := b.pubsub.Publish(topic, msg); err != nil {
				b.logger.Warn("failed to publish event", "topic", topic, "error", err)
			}
		}
	}
}

// Subscribe returns a channel of events for the given user. The channel is
// closed when ctx is cancelled. Messages must be Acked (or Nacked) by the
// consumer; delivery of the next event waits for the ack.
func (b *Bus) Subscribe(ctx context.Context, userID string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, UserTopic(userID))
}

// Close shuts down the pub/sub, stops the dispatch workers and closes all
// subscriber channels. Undelivered queued events are dropped.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.closing)
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}

var _ Notifier = (*Bus)(nil)
