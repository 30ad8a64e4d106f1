package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mediapruner/queue/internal/queue"
	"github.com/mediapruner/queue/internal/queue/eventbus"
)

// StreamHandler serves the live task-update event stream.
type StreamHandler struct {
	service      *queue.Service
	bus          *eventbus.Bus
	pingInterval time.Duration
}

// NewStreamHandler creates a new event-stream handler. pingInterval is
// the idle keepalive cadence; it defaults to 15s if zero.
func NewStreamHandler(service *queue.Service, bus *eventbus.Bus, pingInterval time.Duration) *StreamHandler {
	if pingInterval <= 0 {
		pingInterval = 15 * time.Second
	}
	return &StreamHandler{service: service, bus: bus, pingInterval: pingInterval}
}

// ServeHTTP handles GET /api/queues/stream. On connect it emits the
// current task list as an init event, then relays task_update events as
// they're published, and a ping every idle interval. The client
// disconnecting (ctx.Done) unsubscribes it from the bus.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	tasks, err := h.service.ListTasks(ctx, 0)
	if err == nil {
		writeEvent(w, eventbus.EventInit, tasks)
		flusher.Flush()
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			flusher.Flush()

		case <-ticker.C:
			writeEvent(w, eventbus.EventPing, struct{}{})
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event eventbus.EventName, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
}
