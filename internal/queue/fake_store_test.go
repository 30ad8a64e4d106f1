package queue

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// fakeStore is an in-memory Store used across the package's tests. It
// mirrors PostgresStore's semantics closely enough to exercise the
// worker/service loop without a real database.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	tasks     map[int64]*Task
	logs      []LogEntry
	claimHook func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[int64]*Task)}
}

func (s *fakeStore) CreateTask(_ context.Context, taskType TaskType, createdBy string, items []json.RawMessage, meta map[string]any) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	task := &Task{
		ID:         s.nextID,
		Type:       taskType,
		Status:     TaskQueued,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
		TotalItems: len(items),
		Meta:       meta,
	}
	for i, payload := range items {
		s.nextID++
		task.Items = append(task.Items, &Item{ID: s.nextID, TaskID: task.ID, Index: i, Status: ItemQueued, Payload: payload})
	}
	s.tasks[task.ID] = task
	return cloneTask(task), nil
}

func (s *fakeStore) ClaimNextQueuedTask(_ context.Context) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimHook != nil {
		s.claimHook()
	}

	var oldest *Task
	for _, t := range s.tasks {
		if t.Status != TaskQueued {
			continue
		}
		if oldest == nil || t.CreatedAt.Before(oldest.CreatedAt) || (t.CreatedAt.Equal(oldest.CreatedAt) && t.ID < oldest.ID) {
			oldest = t
		}
	}
	if oldest == nil {
		return nil, nil
	}

	now := time.Now().UTC()
	oldest.Status = TaskRunning
	oldest.StartedAt = &now
	return cloneTask(oldest), nil
}

func (s *fakeStore) UpdateItem(_ context.Context, itemID int64, status ItemStatus, result json.RawMessage, startedAt, finishedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		for _, it := range t.Items {
			if it.ID != itemID {
				continue
			}
			it.Status = status
			if result != nil {
				it.Result = result
			}
			if startedAt != nil {
				it.StartedAt = startedAt
			}
			if finishedAt != nil {
				it.FinishedAt = finishedAt
			}
			return nil
		}
	}
	return ErrTaskNotFound
}

func (s *fakeStore) UpdateTaskStatus(_ context.Context, taskID int64, status TaskStatus, finishedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	t.Status = status
	if finishedAt != nil {
		t.FinishedAt = finishedAt
	}
	return nil
}

func (s *fakeStore) IncrementCompletedItems(_ context.Context, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	t.CompletedItems++
	return nil
}

func (s *fakeStore) GetTask(_ context.Context, taskID int64) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (s *fakeStore) ListTasks(_ context.Context, limit int) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*Task
	for _, t := range s.tasks {
		all = append(all, cloneTask(t))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *fakeStore) CancelTask(_ context.Context, taskID int64) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if !t.Status.IsTerminal() {
		now := time.Now().UTC()
		t.Status = TaskDeleted
		t.CanceledAt = &now
		for _, it := range t.Items {
			if it.Status == ItemQueued || it.Status == ItemRunning {
				it.Status = ItemCanceled
			}
		}
	}
	return cloneTask(t), nil
}

func (s *fakeStore) PurgeTasks(_ context.Context, scope PurgeScope, olderThanSeconds *int64) (PurgeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result PurgeResult
	switch scope {
	case PurgeCurrent:
		for id, t := range s.tasks {
			if t.Status != TaskQueued && t.Status != TaskRunning {
				continue
			}
			result.TasksAffected++
			t.Status = TaskDeleted
			for _, it := range t.Items {
				if it.Status == ItemQueued || it.Status == ItemRunning {
					it.Status = ItemCanceled
					result.ItemsAffected++
				}
			}
			s.tasks[id] = t
		}
	case PurgeHistory:
		for id, t := range s.tasks {
			if !t.Status.IsTerminal() {
				continue
			}
			result.TasksAffected++
			result.ItemsAffected += len(t.Items)
			delete(s.tasks, id)
		}
	case PurgeAll:
		cur, _ := s.purgeCurrentLocked()
		hist, _ := s.purgeHistoryLocked()
		return PurgeResult{TasksAffected: cur.TasksAffected + hist.TasksAffected, ItemsAffected: cur.ItemsAffected + hist.ItemsAffected}, nil
	default:
		return result, ErrInvalidScope
	}
	return result, nil
}

func (s *fakeStore) purgeCurrentLocked() (PurgeResult, error) {
	var result PurgeResult
	for id, t := range s.tasks {
		if t.Status != TaskQueued && t.Status != TaskRunning {
			continue
		}
		result.TasksAffected++
		t.Status = TaskDeleted
		for _, it := range t.Items {
			if it.Status == ItemQueued || it.Status == ItemRunning {
				it.Status = ItemCanceled
				result.ItemsAffected++
			}
		}
		s.tasks[id] = t
	}
	return result, nil
}

func (s *fakeStore) purgeHistoryLocked() (PurgeResult, error) {
	var result PurgeResult
	for id, t := range s.tasks {
		if !t.Status.IsTerminal() {
			continue
		}
		result.TasksAffected++
		result.ItemsAffected += len(t.Items)
		delete(s.tasks, id)
	}
	return result, nil
}

func (s *fakeStore) InsertLogEntry(_ context.Context, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func cloneTask(t *Task) *Task {
	clone := *t
	clone.Items = make([]*Item, len(t.Items))
	for i, it := range t.Items {
		itemCopy := *it
		clone.Items[i] = &itemCopy
	}
	return &clone
}

// fakePublisher records published updates for assertions.
type fakePublisher struct {
	mu    sync.Mutex
	tasks []*Task
	lists [][]*Task
}

func (p *fakePublisher) PublishTaskUpdate(task *Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
}

func (p *fakePublisher) PublishTaskList(tasks []*Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lists = append(p.lists, tasks)
}
