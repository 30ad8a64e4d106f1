package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/mediapruner/queue/internal/queue/eventbus"
)

// RedisChannel is where task-update events are mirrored for any other
// process (e.g. a second API instance's websocket bridge) sharing the
// same Redis instance. The in-process eventbus.Bus remains the primary
// transport for this process's own SSE/websocket subscribers.
const RedisChannel = "queue:events"

// redisPublisher is the narrow slice of database.RedisDB that
// BusPublisher needs; kept local so this package doesn't import
// internal/database.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// BusPublisher adapts an eventbus.Bus to the narrow EventPublisher
// interface QueueService and Worker depend on, serializing task
// snapshots to JSON at the publish boundary. When a redisPublisher is
// supplied, every event is mirrored to Redis as well.
type BusPublisher struct {
	bus   *eventbus.Bus
	redis redisPublisher
}

// NewBusPublisher wraps a bus for use as a QueueService/Worker
// collaborator. redis may be nil to disable the Redis mirror.
func NewBusPublisher(bus *eventbus.Bus, redis redisPublisher) *BusPublisher {
	return &BusPublisher{bus: bus, redis: redis}
}

// PublishTaskUpdate serializes the task snapshot and enqueues one message
// per subscriber.
func (p *BusPublisher) PublishTaskUpdate(task *Task) {
	data, err := json.Marshal(task)
	if err != nil {
		log.Printf("eventbus: failed to marshal task update: %v", err)
		return
	}
	p.bus.Publish(eventbus.Message{Event: eventbus.EventTaskUpdate, Data: data})
	p.mirrorToRedis(eventbus.EventTaskUpdate, data)
}

// PublishTaskList serializes the list snapshot and enqueues one message
// per subscriber.
func (p *BusPublisher) PublishTaskList(tasks []*Task) {
	data, err := json.Marshal(tasks)
	if err != nil {
		log.Printf("eventbus: failed to marshal task list: %v", err)
		return
	}
	p.bus.Publish(eventbus.Message{Event: eventbus.EventTasks, Data: data})
	p.mirrorToRedis(eventbus.EventTasks, data)
}

func (p *BusPublisher) mirrorToRedis(event eventbus.EventName, data json.RawMessage) {
	if p.redis == nil {
		return
	}
	envelope, err := json.Marshal(eventbus.Message{Event: event, Data: data})
	if err != nil {
		return
	}
	if err := p.redis.Publish(context.Background(), RedisChannel, envelope); err != nil {
		log.Printf("eventbus: failed to mirror event to redis: %v", err)
	}
}
