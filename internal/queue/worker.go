package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Worker is the single background consumer that drains the queue,
// processing one task's items strictly in order before claiming the
// next. It is owned by the composition root; NewWorker returns an
// explicit lifecycle instead of attaching itself to any global state.
type Worker struct {
	store        Store
	publisher    EventPublisher
	handlers     *HandlerRegistry
	pollInterval time.Duration
	log          *logSink

	mu              sync.Mutex
	running         bool
	stopCh          chan struct{}
	doneCh          chan struct{}
	lastProcessedAt *time.Time
	lastError       string
}

// NewWorker builds a worker with the given poll interval between empty
// claims.
func NewWorker(store Store, publisher EventPublisher, handlers *HandlerRegistry, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Worker{
		store:        store,
		publisher:    publisher,
		handlers:     handlers,
		pollInterval: pollInterval,
		log:          newLogSink(store, "queue.worker"),
	}
}

// Start transitions the worker to running and begins the loop in a new
// goroutine. Idempotent if already running.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh := w.stopCh
	doneCh := w.doneCh
	w.mu.Unlock()

	go w.run(ctx, stopCh, doneCh)
}

// Stop signals the loop to stop and waits for the current iteration to
// finish. Idempotent.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	doneCh := w.doneCh
	w.mu.Unlock()

	<-doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// IsRunning reports whether the loop is currently active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// LastProcessedAt returns when the loop last finished a claim attempt
// (successful or empty), for the worker/debug HTTP endpoint.
func (w *Worker) LastProcessedAt() *time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastProcessedAt
}

// LastError returns the most recent handler or store error observed by
// the loop, for the worker/debug HTTP endpoint.
func (w *Worker) LastError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}

func (w *Worker) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		processed := w.ProcessOne(ctx)
		w.touchLastProcessed()

		if !processed {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// ProcessOne executes one loop iteration synchronously: claim a task,
// process its items in order, finalize. Returns true if a task was
// claimed and processed. Exposed as a debug-only HTTP operation and used
// directly by tests.
func (w *Worker) ProcessOne(ctx context.Context) bool {
	task, err := w.store.ClaimNextQueuedTask(ctx)
	if err != nil {
		w.setLastError(fmt.Sprintf("claim failed: %v", err))
		w.log.error(ctx, "failed to claim next queued task", "queue.worker", "ProcessOne", err.Error())
		time.Sleep(w.pollInterval)
		return false
	}
	if task == nil {
		return false
	}

	w.publisher.PublishTaskUpdate(task)

	anyFailed := w.processItems(ctx, task)

	w.finalize(ctx, task, anyFailed)

	return true
}

// processItems iterates items in ascending index order, honoring
// cancellation observed at each item boundary. Returns true if any item
// failed.
func (w *Worker) processItems(ctx context.Context, task *Task) bool {
	anyFailed := false

	for _, item := range task.Items {
		current, err := w.store.GetTask(ctx, task.ID)
		if err != nil {
			w.setLastError(fmt.Sprintf("re-read task failed: %v", err))
			w.log.error(ctx, "failed to re-read task status", "queue.worker", "processItems", err.Error())
			continue
		}
		if current.Status == TaskCanceled || current.Status == TaskDeleted {
			break
		}

		if item.Status != ItemQueued {
			continue
		}

		startedAt := now()
		if err := w.store.UpdateItem(ctx, item.ID, ItemRunning, nil, &startedAt, nil); err != nil {
			w.setLastError(fmt.Sprintf("update item failed: %v", err))
			time.Sleep(w.pollInterval)
			continue
		}
		w.publishSnapshot(ctx, task)

		outcome := w.dispatch(ctx, task, item)

		// A canceled item's outcome is ignored: re-check status before
		// applying what the handler reported.
		postRead, err := w.store.GetTask(ctx, task.ID)
		if err == nil && (postRead.Status == TaskCanceled || postRead.Status == TaskDeleted) {
			continue
		}

		finishedAt := now()
		switch outcome.Kind {
		case OutcomeCompleted, OutcomeNoOp:
			if err := w.store.UpdateItem(ctx, item.ID, ItemCompleted, outcome.Result, nil, &finishedAt); err != nil {
				w.setLastError(fmt.Sprintf("update item failed: %v", err))
			}
			if err := w.store.IncrementCompletedItems(ctx, task.ID); err != nil {
				w.setLastError(fmt.Sprintf("increment completed_items failed: %v", err))
			}
		case OutcomeFailed:
			anyFailed = true
			w.setLastError(outcome.Message)
			if err := w.store.UpdateItem(ctx, item.ID, ItemFailed, outcome.Result, nil, &finishedAt); err != nil {
				w.setLastError(fmt.Sprintf("update item failed: %v", err))
			}
			w.log.error(ctx, fmt.Sprintf("item %d failed: %s", item.ID, outcome.Message), "queue.worker", "processItems", outcome.Message)
		}

		w.publishSnapshot(ctx, task)
	}

	return anyFailed
}

// publishSnapshot re-reads the task from the store and publishes that
// snapshot instead of the caller's in-memory copy, which is never
// mutated as items advance. Falls back to the stale copy if the re-read
// fails so a transient store error never silently drops the event.
func (w *Worker) publishSnapshot(ctx context.Context, task *Task) {
	fresh, err := w.store.GetTask(ctx, task.ID)
	if err != nil {
		w.publisher.PublishTaskUpdate(task)
		return
	}
	w.publisher.PublishTaskUpdate(fresh)
}

// dispatch invokes the registered handler, recovering from a panic the
// way the loop recovers from any other unexpected handler failure: the
// task keeps going and the item is marked failed.
func (w *Worker) dispatch(ctx context.Context, task *Task, item *Item) (outcome ItemOutcome) {
	handler, ok := w.handlers.Lookup(task.Type)
	if !ok {
		return Failed("unknown task type", map[string]string{"error": "unknown task type"})
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = Failed(fmt.Sprintf("handler panic: %v", r), nil)
		}
	}()

	return handler.Handle(ctx, item.Payload, task.Meta)
}

// finalize computes the task's terminal status once every item has been
// visited (or cancellation broke the loop early).
func (w *Worker) finalize(ctx context.Context, task *Task, anyFailed bool) {
	current, err := w.store.GetTask(ctx, task.ID)
	if err != nil {
		w.setLastError(fmt.Sprintf("finalize re-read failed: %v", err))
		return
	}

	if current.Status == TaskCanceled || current.Status == TaskDeleted {
		w.publisher.PublishTaskUpdate(current)
		return
	}

	finishedAt := now()
	status := TaskCompleted
	if anyFailed {
		status = TaskFailed
	}

	if err := w.store.UpdateTaskStatus(ctx, task.ID, status, &finishedAt); err != nil {
		w.setLastError(fmt.Sprintf("finalize update failed: %v", err))
		return
	}

	if status == TaskFailed {
		w.log.error(ctx, fmt.Sprintf("task %d finished with failed items", task.ID), "queue.worker", "finalize", "")
	}

	final, err := w.store.GetTask(ctx, task.ID)
	if err != nil {
		return
	}
	w.publisher.PublishTaskUpdate(final)
}

func (w *Worker) touchLastProcessed() {
	t := now()
	w.mu.Lock()
	w.lastProcessedAt = &t
	w.mu.Unlock()
}

func (w *Worker) setLastError(msg string) {
	w.mu.Lock()
	w.lastError = msg
	w.mu.Unlock()
}

func now() time.Time {
	return time.Now().UTC()
}
