package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mediapruner/queue/internal/queue/eventbus"
)

func TestStreamHandler_SendsInitEvent(t *testing.T) {
	service, _ := newTestService()
	bus := eventbus.New()
	h := NewStreamHandler(service, bus, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/queues/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "event: "+string(eventbus.EventInit)) {
		t.Errorf("expected init event in body, got %q", body)
	}
}

func TestStreamHandler_RelaysPublishedEvents(t *testing.T) {
	service, _ := newTestService()
	bus := eventbus.New()
	h := NewStreamHandler(service, bus, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/queues/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(w, req)
		close(done)
	}()

	// Give ServeHTTP time to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)
	bus.Publish(eventbus.Message{Event: eventbus.EventTaskUpdate, Data: []byte(`{"id":1}`)})
	time.Sleep(20 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: "+string(eventbus.EventTaskUpdate)) {
		t.Errorf("expected task_update event in body, got %q", body)
	}
}
