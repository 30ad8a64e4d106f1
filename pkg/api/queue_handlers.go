package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mediapruner/queue/internal/common"
	"github.com/mediapruner/queue/internal/queue"
)

// QueueHandler handles task-queue HTTP requests.
type QueueHandler struct {
	service          *queue.Service
	worker           *queue.Worker
	debugMode        bool
	defaultListLimit int
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(service *queue.Service, worker *queue.Worker, debugMode bool, defaultListLimit int) *QueueHandler {
	if defaultListLimit <= 0 {
		defaultListLimit = 50
	}
	return &QueueHandler{service: service, worker: worker, debugMode: debugMode, defaultListLimit: defaultListLimit}
}

// CreateTask handles POST /api/queues/tasks
func (h *QueueHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req queue.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, common.ErrBadRequest("invalid request body"))
		return
	}

	t, err := h.service.CreateTask(r.Context(), req)
	if err != nil {
		handleQueueError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusCreated, map[string]any{
		"task_id": t.ID,
		"status":  t.Status,
	})
}

// ListTasks handles GET /api/queues/tasks?limit=N
func (h *QueueHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQueryParam(r, "limit", h.defaultListLimit)

	tasks, err := h.service.ListTasks(r.Context(), limit)
	if err != nil {
		handleQueueError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, tasks)
}

// Ongoing handles GET /api/queues/ongoing, a short recent-tasks view for
// dashboard widgets that don't need the full list page.
func (h *QueueHandler) Ongoing(w http.ResponseWriter, r *http.Request) {
	const ongoingLimit = 10

	tasks, err := h.service.ListTasks(r.Context(), ongoingLimit)
	if err != nil {
		handleQueueError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, tasks)
}

// GetTask handles GET /api/queues/tasks/{id}
func (h *QueueHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseTaskID(r)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, common.ErrBadRequest("invalid task id"))
		return
	}

	t, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		handleQueueError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, t)
}

// CancelTask handles POST /api/queues/tasks/{id}/cancel
func (h *QueueHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseTaskID(r)
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, common.ErrBadRequest("invalid task id"))
		return
	}

	t, err := h.service.CancelTask(r.Context(), id)
	if err != nil {
		handleQueueError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, t)
}

// ClearTasks handles POST /api/queues/tasks/clear. Debug-only.
func (h *QueueHandler) ClearTasks(w http.ResponseWriter, r *http.Request) {
	if !h.debugMode {
		common.WriteError(w, http.StatusForbidden, common.ErrForbidden(queue.ErrForbiddenDebug.Error()))
		return
	}

	scope := queue.PurgeScope(r.URL.Query().Get("scope"))

	var olderThan *int64
	if raw := r.URL.Query().Get("older_than_seconds"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			common.WriteError(w, http.StatusBadRequest, common.ErrBadRequest("invalid older_than_seconds"))
			return
		}
		olderThan = &v
	}

	result, err := h.service.PurgeTasks(r.Context(), scope, olderThan)
	if err != nil {
		handleQueueError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, result)
}

// WorkerStatus handles GET /api/queues/worker
func (h *QueueHandler) WorkerStatus(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]any{"running": h.worker.IsRunning()})
}

// WorkerDebug handles GET /api/queues/worker/debug
func (h *QueueHandler) WorkerDebug(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]any{
		"running":           h.worker.IsRunning(),
		"last_processed_at": h.worker.LastProcessedAt(),
		"last_error":        h.worker.LastError(),
	})
}

// WorkerStart handles POST /api/queues/worker/start. Debug-only.
func (h *QueueHandler) WorkerStart(w http.ResponseWriter, r *http.Request) {
	if !h.debugMode {
		common.WriteError(w, http.StatusForbidden, common.ErrForbidden(queue.ErrForbiddenDebug.Error()))
		return
	}
	h.worker.Start(r.Context())
	common.WriteJSON(w, http.StatusOK, map[string]any{"running": h.worker.IsRunning()})
}

// WorkerStop handles POST /api/queues/worker/stop. Debug-only.
func (h *QueueHandler) WorkerStop(w http.ResponseWriter, r *http.Request) {
	if !h.debugMode {
		common.WriteError(w, http.StatusForbidden, common.ErrForbidden(queue.ErrForbiddenDebug.Error()))
		return
	}
	h.worker.Stop()
	common.WriteJSON(w, http.StatusOK, map[string]any{"running": h.worker.IsRunning()})
}

// WorkerRunOnce handles POST /api/queues/worker/run-once. Debug-only.
func (h *QueueHandler) WorkerRunOnce(w http.ResponseWriter, r *http.Request) {
	if !h.debugMode {
		common.WriteError(w, http.StatusForbidden, common.ErrForbidden(queue.ErrForbiddenDebug.Error()))
		return
	}
	processed := h.worker.ProcessOne(r.Context())
	common.WriteJSON(w, http.StatusOK, map[string]any{"processed": processed})
}

// handleQueueError converts queue errors to HTTP responses.
func handleQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrTaskNotFound):
		common.WriteError(w, http.StatusNotFound, common.ErrNotFound("task not found"))
	case errors.Is(err, queue.ErrInvalidType):
		common.WriteError(w, http.StatusBadRequest, common.ErrBadRequest(err.Error()))
	case errors.Is(err, queue.ErrNoItems):
		common.WriteError(w, http.StatusBadRequest, common.ErrBadRequest(err.Error()))
	case errors.Is(err, queue.ErrInvalidPayload):
		common.WriteError(w, http.StatusBadRequest, common.ErrBadRequest(err.Error()))
	case errors.Is(err, queue.ErrInvalidScope):
		common.WriteError(w, http.StatusBadRequest, common.ErrBadRequest(err.Error()))
	case errors.Is(err, queue.ErrForbiddenDebug):
		common.WriteError(w, http.StatusForbidden, common.ErrForbidden(err.Error()))
	default:
		common.WriteError(w, http.StatusInternalServerError, common.ErrInternalServer(err.Error()))
	}
}

// parseTaskID extracts the {id} chi URL param as an int64.
func parseTaskID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// parseIntQueryParam parses an integer query parameter with a default value.
func parseIntQueryParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
