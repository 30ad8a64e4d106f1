package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func newTestService() (*Service, *fakeStore, *fakePublisher) {
	store := newFakeStore()
	pub := &fakePublisher{}
	registry := NewHandlerRegistry()
	return NewService(store, pub, registry), store, pub
}

func TestService_CreateTask_RejectsMissingType(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateTask(context.Background(), CreateTaskRequest{Items: []json.RawMessage{json.RawMessage(`{}`)}})
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestService_CreateTask_RejectsEmptyItems(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateTask(context.Background(), CreateTaskRequest{Type: TaskScan})
	if !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
}

func TestService_CreateTask_RejectsNonObjectPayload(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateTask(context.Background(), CreateTaskRequest{
		Type:  TaskScan,
		Items: []json.RawMessage{json.RawMessage(`"not an object"`)},
	})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestService_CreateTask_RejectsPayloadMissingRequiredField(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateTask(context.Background(), CreateTaskRequest{
		Type:  TaskAnalyze,
		Items: []json.RawMessage{json.RawMessage(`{"show_id":1}`)},
	})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for an analyze item missing movie_id/episode_id, got %v", err)
	}
}

func TestService_CreateTask_UnknownTypeAcceptsAnyObjectPayload(t *testing.T) {
	svc, _, _ := newTestService()
	task, err := svc.CreateTask(context.Background(), CreateTaskRequest{
		Type:  TaskType("future_task_type"),
		Items: []json.RawMessage{json.RawMessage(`{"anything":true}`)},
	})
	if err != nil {
		t.Fatalf("expected unknown task types to stay forward-compatible, got %v", err)
	}
	if task.Status != TaskQueued {
		t.Fatalf("expected queued, got %s", task.Status)
	}
}

func TestService_CreateTask_PublishesAndReturnsTask(t *testing.T) {
	svc, _, pub := newTestService()
	task, err := svc.CreateTask(context.Background(), CreateTaskRequest{
		Type:  TaskScan,
		Items: []json.RawMessage{json.RawMessage(`{"path":"/tmp"}`)},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Status != TaskQueued {
		t.Fatalf("expected queued, got %s", task.Status)
	}
	if task.TotalItems != 1 {
		t.Fatalf("expected total_items=1, got %d", task.TotalItems)
	}
	if len(pub.tasks) != 1 {
		t.Fatalf("expected one published update, got %d", len(pub.tasks))
	}
}

func TestService_CancelTask_NoOpOnTerminal(t *testing.T) {
	svc, store, pub := newTestService()
	task, err := store.CreateTask(context.Background(), TaskScan, "", []json.RawMessage{json.RawMessage(`{}`)}, nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	finishedAt := now()
	if err := store.UpdateTaskStatus(context.Background(), task.ID, TaskCompleted, &finishedAt); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	canceled, err := svc.CancelTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if canceled.Status != TaskCompleted {
		t.Fatalf("expected canceling a terminal task to be a no-op, got %s", canceled.Status)
	}
	if len(pub.tasks) != 1 {
		t.Fatalf("expected the no-op cancel to still publish a snapshot, got %d", len(pub.tasks))
	}
}

func TestService_CancelTask_UnknownTask(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CancelTask(context.Background(), 999)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestService_PurgeTasks_RejectsInvalidScope(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.PurgeTasks(context.Background(), PurgeScope("bogus"), nil)
	if !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}
}

func TestService_PurgeTasks_CurrentCancelsActiveOnly(t *testing.T) {
	svc, store, _ := newTestService()
	active, err := store.CreateTask(context.Background(), TaskScan, "", []json.RawMessage{json.RawMessage(`{}`)}, nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	done, err := store.CreateTask(context.Background(), TaskScan, "", []json.RawMessage{json.RawMessage(`{}`)}, nil)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	finishedAt := now()
	if err := store.UpdateTaskStatus(context.Background(), done.ID, TaskCompleted, &finishedAt); err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}

	result, err := svc.PurgeTasks(context.Background(), PurgeCurrent, nil)
	if err != nil {
		t.Fatalf("PurgeTasks: %v", err)
	}
	if result.TasksAffected != 1 {
		t.Fatalf("expected exactly the active task purged, got %d", result.TasksAffected)
	}

	reloadedActive, err := store.GetTask(context.Background(), active.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if reloadedActive.Status != TaskDeleted {
		t.Fatalf("expected active task deleted, got %s", reloadedActive.Status)
	}

	reloadedDone, err := store.GetTask(context.Background(), done.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if reloadedDone.Status != TaskCompleted {
		t.Fatalf("expected completed task untouched by current-scope purge, got %s", reloadedDone.Status)
	}
}

func TestService_ListTasks_DefaultsLimit(t *testing.T) {
	svc, store, _ := newTestService()
	for i := 0; i < 3; i++ {
		if _, err := store.CreateTask(context.Background(), TaskScan, "", []json.RawMessage{json.RawMessage(`{}`)}, nil); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
	tasks, err := svc.ListTasks(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
}
