package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mediapruner/queue/internal/queue/eventbus"
)

type recordingRedis struct {
	channel string
	payload []byte
}

func (r *recordingRedis) Publish(_ context.Context, channel string, message interface{}) error {
	r.channel = channel
	r.payload = message.([]byte)
	return nil
}

func TestBusPublisher_PublishTaskUpdate(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	redis := &recordingRedis{}
	pub := NewBusPublisher(bus, redis)

	task := &Task{ID: 1, Type: TaskScan, Status: TaskQueued}
	pub.PublishTaskUpdate(task)

	select {
	case msg := <-sub.C():
		if msg.Event != eventbus.EventTaskUpdate {
			t.Fatalf("expected task_update event, got %s", msg.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bus delivery")
	}

	if redis.channel != RedisChannel {
		t.Fatalf("expected mirror to %s, got %s", RedisChannel, redis.channel)
	}
	var envelope eventbus.Message
	if err := json.Unmarshal(redis.payload, &envelope); err != nil {
		t.Fatalf("unmarshal redis payload: %v", err)
	}
	if envelope.Event != eventbus.EventTaskUpdate {
		t.Fatalf("expected mirrored event task_update, got %s", envelope.Event)
	}
}

func TestBusPublisher_NilRedisIsNoOp(t *testing.T) {
	bus := eventbus.New()
	pub := NewBusPublisher(bus, nil)
	pub.PublishTaskList([]*Task{{ID: 1}}) // must not panic
}
