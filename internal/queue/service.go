package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Service exposes the Store + EventBus composition to the HTTP surface,
// enforcing request validation before anything reaches the store.
type Service struct {
	store     Store
	publisher EventPublisher
	handlers  *HandlerRegistry
	validator *payloadValidator
}

// NewService creates a new queue service.
func NewService(store Store, publisher EventPublisher, handlers *HandlerRegistry) *Service {
	return &Service{store: store, publisher: publisher, handlers: handlers, validator: newPayloadValidator()}
}

// CreateTask validates the request, inserts the task and its items in one
// transaction, and publishes a task_update event. Unknown task types are
// still accepted to remain forward-compatible; they fail per-item at
// execution time when the worker finds no registered handler.
func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	if req.Type == "" {
		return nil, ErrInvalidType
	}
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	if err := s.validateItems(req.Type, req.Items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	task, err := s.store.CreateTask(ctx, req.Type, req.CreatedBy, req.Items, req.Meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	s.publisher.PublishTaskUpdate(task)
	return task, nil
}

// ListTasks returns the most recent tasks, default limit 50.
func (s *Service) ListTasks(ctx context.Context, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 50
	}
	tasks, err := s.store.ListTasks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return tasks, nil
}

// GetTask loads a task with its items.
func (s *Service) GetTask(ctx context.Context, id int64) (*Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CancelTask cancels a task and publishes the resulting snapshot.
// Canceling a task already in a terminal state is a no-op; the store
// returns the current row unchanged.
func (s *Service) CancelTask(ctx context.Context, id int64) (*Task, error) {
	task, err := s.store.CancelTask(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publisher.PublishTaskUpdate(task)
	return task, nil
}

// PurgeTasks performs the administrative hard-delete/soft-cancel sweep.
// Gating on debug mode is the HTTP layer's responsibility; the service
// performs the operation regardless of caller.
func (s *Service) PurgeTasks(ctx context.Context, scope PurgeScope, olderThanSeconds *int64) (PurgeResult, error) {
	switch scope {
	case PurgeCurrent, PurgeHistory, PurgeAll:
	default:
		return PurgeResult{}, ErrInvalidScope
	}

	result, err := s.store.PurgeTasks(ctx, scope, olderThanSeconds)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return result, nil
}

// validateItems checks each item payload against the JSON Schema
// registered for the task's type before it ever reaches the store.
// Unrecognized types validate against the generic object schema so they
// remain forward-compatible per spec.md §6.2: creation still succeeds,
// and an unregistered handler fails the item at execution time instead.
func (s *Service) validateItems(taskType TaskType, items []json.RawMessage) error {
	schema := itemSchemaFor(taskType)
	for i, item := range items {
		if err := s.validator.validate(schema, item); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}
