package websocket

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// BridgeRedisToHub forwards task-update events mirrored to Redis by
// another process's queue subscriber to this process's websocket
// clients, so that every API instance behind a load balancer observes
// the same stream even though the worker only lives in one of them.
func BridgeRedisToHub(ctx context.Context, redisClient *redis.Client, hub *Hub, channel string) {
	if redisClient == nil || hub == nil {
		return
	}

	pubsub := redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			hub.Broadcast([]byte(msg.Payload))
		}
	}
}
