// Package eventbus implements the in-process publish/subscribe layer
// that fans task-change notifications out to streaming HTTP clients
// without ever blocking the worker that produces them.
package eventbus

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// EventName identifies the kind of message carried on a subscription.
type EventName string

const (
	EventInit       EventName = "init"
	EventTasks      EventName = "tasks"
	EventTaskUpdate EventName = "task_update"
	EventPing       EventName = "ping"
)

// Message is one notification delivered to a subscriber. The HTTP layer
// is responsible for framing it as `event: <name>\ndata: <json>\n\n`;
// the bus itself stays wire-format agnostic.
type Message struct {
	Event EventName
	Data  json.RawMessage
}

// defaultBufferCapacity is the per-subscriber buffer size spec.md §4.2
// fixes at 10 messages retained under backpressure. New uses this
// default; NewWithCapacity lets the composition root override it (the
// P7 drop-oldest guarantee holds at any capacity >= 1).
const defaultBufferCapacity = 10

// Subscription is a single subscriber's bounded inbox.
type Subscription struct {
	id uuid.UUID
	ch chan Message
}

// C returns the channel to read published messages from. The channel is
// closed when the subscription is removed via Unsubscribe or dropped by
// the bus after a delivery failure.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Bus is the in-process pub/sub hub. The zero value is not usable; use
// New or NewWithCapacity.
type Bus struct {
	mu       sync.Mutex
	subs     map[uuid.UUID]*Subscription
	capacity int
}

// New creates an empty event bus with the spec-fixed buffer capacity
// (10 messages per subscriber).
func New() *Bus {
	return NewWithCapacity(defaultBufferCapacity)
}

// NewWithCapacity creates an empty event bus with an operator-chosen
// per-subscriber buffer size, falling back to the default when capacity
// is not positive.
func NewWithCapacity(capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}
	return &Bus{subs: make(map[uuid.UUID]*Subscription), capacity: capacity}
}

// Subscribe allocates a bounded buffer and registers it with the bus.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	capacity := b.capacity
	sub := &Subscription{
		id: uuid.New(),
		ch: make(chan Message, capacity),
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes a subscription and closes its channel. Idempotent:
// unsubscribing twice, or a subscription already dropped by the bus, is a
// no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.id)
}

// removeLocked deletes a subscriber and closes its channel. Callers must
// hold b.mu.
func (b *Bus) removeLocked(id uuid.UUID) {
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
}

// Publish enqueues a message for every current subscriber. If a
// subscriber's buffer is full, the oldest queued message is dropped to
// make room (drop-oldest). Publishers are serialized by the bus mutex and
// readers only free space, so with a capacity of at least 1 the retry
// always finds room; if it ever does not, the subscriber is removed (its
// channel closed) rather than blocking the producer. Publish never blocks
// beyond O(1) work per subscriber.
func (b *Bus) Publish(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		select {
		case sub.ch <- msg:
			continue
		default:
		}

		// Buffer full: drop the oldest message and retry once.
		select {
		case <-sub.ch:
		default:
		}

		select {
		case sub.ch <- msg:
		default:
			log.Printf("eventbus: dropping unresponsive subscriber %s", id)
			b.removeLocked(id)
		}
	}
}

// SubscriberCount reports how many subscribers are currently registered.
// Exposed for tests and operator diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
