// Package queue implements the persistent task-queue subsystem: durable
// tasks and items, a single background worker, per-type handlers, and the
// service layer the HTTP surface drives.
package queue

import (
	"encoding/json"
	"time"
)

// TaskType identifies which handler processes a task's items.
type TaskType string

const (
	TaskScan             TaskType = "scan"
	TaskAnalyze          TaskType = "analyze"
	TaskRefreshMetadata  TaskType = "refresh_metadata"
	TaskSyncWatchHistory TaskType = "sync_watch_history"
)

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCanceled  TaskStatus = "canceled"
	TaskDeleted   TaskStatus = "deleted"
)

// IsTerminal reports whether the task status can no longer transition.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCanceled, TaskDeleted:
		return true
	default:
		return false
	}
}

// ItemStatus is the lifecycle status of a single item.
type ItemStatus string

const (
	ItemQueued    ItemStatus = "queued"
	ItemRunning   ItemStatus = "running"
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
	ItemCanceled  ItemStatus = "canceled"
)

// IsTerminal reports whether the item status can no longer transition.
func (s ItemStatus) IsTerminal() bool {
	switch s {
	case ItemCompleted, ItemFailed, ItemCanceled:
		return true
	default:
		return false
	}
}

// Task is a durable unit of work owning an ordered list of items.
type Task struct {
	ID             int64          `json:"id"`
	Type           TaskType       `json:"type"`
	Status         TaskStatus     `json:"status"`
	CreatedBy      string         `json:"created_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	CanceledAt     *time.Time     `json:"canceled_at,omitempty"`
	TotalItems     int            `json:"total_items"`
	CompletedItems int            `json:"completed_items"`
	Meta           map[string]any `json:"meta,omitempty"`

	Items []*Item `json:"items,omitempty"`
}

// Item is a single executable work unit belonging to a task.
type Item struct {
	ID         int64           `json:"id"`
	TaskID     int64           `json:"task_id"`
	Index      int             `json:"index"`
	Status     ItemStatus      `json:"status"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Recognized task meta keys. Unknown keys are preserved verbatim by the
// store but these are the ones the core handlers look for.
const (
	MetaTrigger        = "trigger"
	MetaIncludeRatings = "include_ratings"
	MetaProvider       = "provider"
	MetaShowID         = "show_id"
	MetaPath           = "path"
	MetaBatch          = "batch"
)

// ProviderTMDB and ProviderOMDb are the values accepted for the "provider"
// meta override in refresh_metadata.
const (
	ProviderTMDB = "tmdb"
	ProviderOMDb = "omdb"
)

// OutcomeKind classifies how a handler finished processing an item.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeNoOp      OutcomeKind = "noop"
	OutcomeFailed    OutcomeKind = "failed"
)

// ItemOutcome is the result a handler reports for one item. Completed and
// NoOp both count toward completed_items; only Failed marks the task for
// eventual failure.
type ItemOutcome struct {
	Kind    OutcomeKind
	Result  json.RawMessage
	Message string
}

// Completed reports a successful item with the given JSON-serializable
// result.
func Completed(result any) ItemOutcome {
	return ItemOutcome{Kind: OutcomeCompleted, Result: marshalResult(result)}
}

// NoOp reports a successful item that applied no external changes.
func NoOp(result any) ItemOutcome {
	return ItemOutcome{Kind: OutcomeNoOp, Result: marshalResult(result)}
}

// Failed reports an item that could not be completed.
func Failed(message string, result any) ItemOutcome {
	return ItemOutcome{Kind: OutcomeFailed, Message: message, Result: marshalResult(result)}
}

func marshalResult(result any) json.RawMessage {
	if result == nil {
		return nil
	}
	if raw, ok := result.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	return b
}

// PurgeScope selects which tasks PurgeTasks affects.
type PurgeScope string

const (
	PurgeCurrent PurgeScope = "current"
	PurgeHistory PurgeScope = "history"
	PurgeAll     PurgeScope = "all"
)

// PurgeResult reports how many rows an administrative purge affected.
type PurgeResult struct {
	TasksAffected int `json:"tasks_affected"`
	ItemsAffected int `json:"items_affected"`
}

// CreateTaskRequest is the input to QueueService.CreateTask.
type CreateTaskRequest struct {
	Type      TaskType          `json:"type"`
	Items     []json.RawMessage `json:"items"`
	Meta      map[string]any    `json:"meta,omitempty"`
	CreatedBy string            `json:"created_by,omitempty"`
}

// LogLevel identifies the severity of a persisted log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "INFO"
	LogWarning LogLevel = "WARNING"
	LogError   LogLevel = "ERROR"
)

// LogEntry is one operator-visible diagnostic row.
type LogEntry struct {
	ID         int64     `json:"id"`
	Level      LogLevel  `json:"level"`
	LoggerName string    `json:"logger_name"`
	Message    string    `json:"message"`
	Module     string    `json:"module,omitempty"`
	Function   string    `json:"function,omitempty"`
	Exception  string    `json:"exception,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
