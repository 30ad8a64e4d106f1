package eventbus

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"
)

func TestBus_SubscribePublishDeliversMessage(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	bus.Publish(Message{Event: EventTaskUpdate, Data: json.RawMessage(`{"id":1}`)})

	select {
	case msg := <-sub.C():
		if msg.Event != EventTaskUpdate {
			t.Fatalf("expected task_update event, got %s", msg.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestBus_NewWithCapacityOverridesDefault(t *testing.T) {
	bus := NewWithCapacity(3)
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for i := 0; i < 5; i++ {
		bus.Publish(Message{Event: EventTaskUpdate, Data: json.RawMessage(strconv.Itoa(i))})
	}

	var received []string
	draining := true
	for draining {
		select {
		case msg := <-sub.C():
			received = append(received, string(msg.Data))
		default:
			draining = false
		}
	}
	if len(received) != 3 {
		t.Fatalf("expected capacity override to retain exactly 3 messages, got %d", len(received))
	}
}

func TestBus_DropOldestRetainsMostRecentTen(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for i := 0; i < 15; i++ {
		bus.Publish(Message{Event: EventTaskUpdate, Data: json.RawMessage(`{"i":` + strconv.Itoa(i) + `}`)})
	}

	var received []int
	draining := true
	for draining {
		select {
		case msg := <-sub.C():
			var payload struct {
				I int `json:"i"`
			}
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			received = append(received, payload.I)
		default:
			draining = false
		}
	}

	if len(received) != defaultBufferCapacity {
		t.Fatalf("expected exactly %d retained messages, got %d", defaultBufferCapacity, len(received))
	}
	// Drop-oldest: the surviving messages are the 10 most recently
	// published (indices 5..14).
	for i, v := range received {
		want := 5 + i
		if v != want {
			t.Fatalf("expected retained message %d to be %d, got %d", i, want, v)
		}
	}
}

func TestBus_PublishNeverBlocksWithFullSubscriber(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.Publish(Message{Event: EventPing, Data: nil})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full, undrained subscriber")
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Unsubscribe(sub)

	if _, ok := <-sub.C(); ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
}

func TestBus_UnsubscribeIdempotent(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub) // must not panic
}

func TestBus_SubscriberCount(t *testing.T) {
	bus := New()
	if bus.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers initially, got %d", bus.SubscriberCount())
	}
	sub1 := bus.Subscribe()
	sub2 := bus.Subscribe()
	if bus.SubscriberCount() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", bus.SubscriberCount())
	}
	bus.Unsubscribe(sub1)
	bus.Unsubscribe(sub2)
	if bus.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribing both, got %d", bus.SubscriberCount())
	}
}

func TestBus_MultipleSubscribersEachReceive(t *testing.T) {
	bus := New()
	sub1 := bus.Subscribe()
	sub2 := bus.Subscribe()
	defer bus.Unsubscribe(sub1)
	defer bus.Unsubscribe(sub2)

	bus.Publish(Message{Event: EventInit, Data: json.RawMessage(`{}`)})

	for _, s := range []*Subscription{sub1, sub2} {
		select {
		case <-s.C():
		case <-time.After(time.Second):
			t.Fatal("expected every subscriber to receive the published message")
		}
	}
}
