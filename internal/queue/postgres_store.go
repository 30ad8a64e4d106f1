package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new Postgres-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CreateTask inserts a task and its items in one transaction.
func (s *PostgresStore) CreateTask(ctx context.Context, taskType TaskType, createdBy string, items []json.RawMessage, meta map[string]any) (*Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal meta: %w", err)
	}

	var createdBySQL *string
	if createdBy != "" {
		createdBySQL = &createdBy
	}

	task := &Task{
		Type:       taskType,
		Status:     TaskQueued,
		CreatedBy:  createdBy,
		TotalItems: len(items),
		Meta:       meta,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO queue_tasks (type, status, created_by, total_items, completed_items, meta)
		VALUES ($1, 'queued', $2, $3, 0, $4)
		RETURNING id, created_at
	`, string(taskType), createdBySQL, len(items), string(metaJSON)).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	task.Items = make([]*Item, 0, len(items))
	for i, payload := range items {
		item := &Item{TaskID: task.ID, Index: i, Status: ItemQueued, Payload: payload}
		err = tx.QueryRow(ctx, `
			INSERT INTO queue_items (task_id, index, status, payload)
			VALUES ($1, $2, 'queued', $3)
			RETURNING id
		`, task.ID, i, []byte(payload)).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert item %d: %w", i, err)
		}
		task.Items = append(task.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit task creation: %w", err)
	}

	return task, nil
}

// ClaimNextQueuedTask atomically selects the oldest queued task, marks it
// running, and returns it with items preloaded. FOR UPDATE SKIP LOCKED
// lets multiple callers claim disjoint tasks without blocking each other.
func (s *PostgresStore) ClaimNextQueuedTask(ctx context.Context) (*Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var taskID int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM queue_tasks
		WHERE status = 'queued'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&taskID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	var task Task
	var metaJSON []byte
	var createdBy *string
	err = tx.QueryRow(ctx, `
		UPDATE queue_tasks SET status = 'running', started_at = NOW()
		WHERE id = $1
		RETURNING id, type, status, created_by, created_at, started_at, finished_at,
			canceled_at, total_items, completed_items, meta
	`, taskID).Scan(
		&task.ID, &task.Type, &task.Status, &createdBy, &task.CreatedAt, &task.StartedAt,
		&task.FinishedAt, &task.CanceledAt, &task.TotalItems, &task.CompletedItems, &metaJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark task running: %w", err)
	}
	if createdBy != nil {
		task.CreatedBy = *createdBy
	}
	if len(metaJSON) > 0 {
		json.Unmarshal(metaJSON, &task.Meta)
	}

	items, err := queryItems(ctx, tx, task.ID)
	if err != nil {
		return nil, err
	}
	task.Items = items

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return &task, nil
}

func queryItems(ctx context.Context, q pgxQuerier, taskID int64) ([]*Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, task_id, index, status, payload, result, started_at, finished_at
		FROM queue_items
		WHERE task_id = $1
		ORDER BY index ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Index, &item.Status,
			&item.Payload, &item.Result, &item.StartedAt, &item.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, &item)
	}
	return items, nil
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// UpdateItem partially updates one item's status, result, and timestamps.
func (s *PostgresStore) UpdateItem(ctx context.Context, itemID int64, status ItemStatus, result json.RawMessage, startedAt, finishedAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE queue_items SET
			status = $2,
			result = COALESCE($3, result),
			started_at = COALESCE($4, started_at),
			finished_at = COALESCE($5, finished_at)
		WHERE id = $1
	`, itemID, string(status), nullableBytes(result), startedAt, finishedAt)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

// UpdateTaskStatus transitions a task's status and optionally sets
// finished_at.
func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskID int64, status TaskStatus, finishedAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE queue_tasks SET status = $2, finished_at = COALESCE($3, finished_at)
		WHERE id = $1
	`, taskID, string(status), finishedAt)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return nil
}

// IncrementCompletedItems bumps a task's completed_items counter by one.
func (s *PostgresStore) IncrementCompletedItems(ctx context.Context, taskID int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE queue_tasks SET completed_items = completed_items + 1 WHERE id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("failed to increment completed_items: %w", err)
	}
	return nil
}

// GetTask loads a task with its items sorted by index.
func (s *PostgresStore) GetTask(ctx context.Context, taskID int64) (*Task, error) {
	var task Task
	var metaJSON []byte
	var createdBy *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, type, status, created_by, created_at, started_at, finished_at,
			canceled_at, total_items, completed_items, meta
		FROM queue_tasks WHERE id = $1
	`, taskID).Scan(
		&task.ID, &task.Type, &task.Status, &createdBy, &task.CreatedAt, &task.StartedAt,
		&task.FinishedAt, &task.CanceledAt, &task.TotalItems, &task.CompletedItems, &metaJSON,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if createdBy != nil {
		task.CreatedBy = *createdBy
	}
	if len(metaJSON) > 0 {
		json.Unmarshal(metaJSON, &task.Meta)
	}

	items, err := queryItems(ctx, s.pool, task.ID)
	if err != nil {
		return nil, err
	}
	task.Items = items

	return &task, nil
}

// ListTasks returns the most recently created tasks first, without items.
func (s *PostgresStore) ListTasks(ctx context.Context, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, status, created_by, created_at, started_at, finished_at,
			canceled_at, total_items, completed_items, meta
		FROM queue_tasks
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		var task Task
		var metaJSON []byte
		var createdBy *string
		if err := rows.Scan(&task.ID, &task.Type, &task.Status, &createdBy, &task.CreatedAt,
			&task.StartedAt, &task.FinishedAt, &task.CanceledAt, &task.TotalItems,
			&task.CompletedItems, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if createdBy != nil {
			task.CreatedBy = *createdBy
		}
		if len(metaJSON) > 0 {
			json.Unmarshal(metaJSON, &task.Meta)
		}
		tasks = append(tasks, &task)
	}
	return tasks, nil
}

// CancelTask sets the task to deleted and cancels its queued/running
// items. Returns ErrTaskNotFound if the task does not exist. Canceling a
// task already in a terminal state is a no-op that still returns the
// current row.
func (s *PostgresStore) CancelTask(ctx context.Context, taskID int64) (*Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status TaskStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM queue_tasks WHERE id = $1 FOR UPDATE`, taskID).Scan(&status); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}

	if !status.IsTerminal() {
		if _, err := tx.Exec(ctx, `
			UPDATE queue_tasks SET status = 'deleted', canceled_at = NOW() WHERE id = $1
		`, taskID); err != nil {
			return nil, fmt.Errorf("failed to cancel task: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE queue_items SET status = 'canceled'
			WHERE task_id = $1 AND status IN ('queued', 'running')
		`, taskID); err != nil {
			return nil, fmt.Errorf("failed to cancel items: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancel: %w", err)
	}

	return s.GetTask(ctx, taskID)
}

// PurgeTasks performs the administrative hard-delete/soft-cancel sweep
// described for each scope.
func (s *PostgresStore) PurgeTasks(ctx context.Context, scope PurgeScope, olderThanSeconds *int64) (PurgeResult, error) {
	var result PurgeResult

	switch scope {
	case PurgeCurrent:
		return s.purgeCurrent(ctx, olderThanSeconds)
	case PurgeHistory:
		return s.purgeHistory(ctx)
	case PurgeAll:
		cur, err := s.purgeCurrent(ctx, olderThanSeconds)
		if err != nil {
			return result, err
		}
		hist, err := s.purgeHistory(ctx)
		if err != nil {
			return result, err
		}
		return PurgeResult{
			TasksAffected: cur.TasksAffected + hist.TasksAffected,
			ItemsAffected: cur.ItemsAffected + hist.ItemsAffected,
		}, nil
	default:
		return result, ErrInvalidScope
	}
}

func (s *PostgresStore) purgeCurrent(ctx context.Context, olderThanSeconds *int64) (PurgeResult, error) {
	var result PurgeResult

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cutoffClause := ""
	args := []any{}
	if olderThanSeconds != nil {
		cutoffClause = "AND COALESCE(started_at, created_at) < NOW() - ($1 || ' seconds')::interval"
		args = append(args, *olderThanSeconds)
	}

	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT id FROM queue_tasks WHERE status IN ('queued', 'running') %s
	`, cutoffClause), args...)
	if err != nil {
		return result, fmt.Errorf("failed to select current tasks: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return result, fmt.Errorf("failed to scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	if len(ids) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return result, fmt.Errorf("failed to commit purge: %w", err)
		}
		return result, nil
	}

	tag, err := tx.Exec(ctx, `UPDATE queue_tasks SET status = 'deleted', canceled_at = NOW() WHERE id = ANY($1)`, ids)
	if err != nil {
		return result, fmt.Errorf("failed to mark tasks deleted: %w", err)
	}
	result.TasksAffected = int(tag.RowsAffected())

	itemTag, err := tx.Exec(ctx, `
		UPDATE queue_items SET status = 'canceled'
		WHERE task_id = ANY($1) AND status IN ('queued', 'running')
	`, ids)
	if err != nil {
		return result, fmt.Errorf("failed to cancel items: %w", err)
	}
	result.ItemsAffected = int(itemTag.RowsAffected())

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("failed to commit purge: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) purgeHistory(ctx context.Context) (PurgeResult, error) {
	var result PurgeResult

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ids []int64
	rows, err := tx.Query(ctx, `
		SELECT id FROM queue_tasks WHERE status IN ('completed', 'failed', 'canceled', 'deleted')
	`)
	if err != nil {
		return result, fmt.Errorf("failed to select terminal tasks: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return result, fmt.Errorf("failed to scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	if len(ids) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return result, fmt.Errorf("failed to commit purge: %w", err)
		}
		return result, nil
	}

	itemTag, err := tx.Exec(ctx, `DELETE FROM queue_items WHERE task_id = ANY($1)`, ids)
	if err != nil {
		return result, fmt.Errorf("failed to delete items: %w", err)
	}
	result.ItemsAffected = int(itemTag.RowsAffected())

	taskTag, err := tx.Exec(ctx, `DELETE FROM queue_tasks WHERE id = ANY($1)`, ids)
	if err != nil {
		return result, fmt.Errorf("failed to delete tasks: %w", err)
	}
	result.TasksAffected = int(taskTag.RowsAffected())

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("failed to commit purge: %w", err)
	}
	return result, nil
}

// InsertLogEntry appends one operator-visible diagnostic row.
func (s *PostgresStore) InsertLogEntry(ctx context.Context, entry LogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO logs (level, logger_name, message, module, function, exception)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, string(entry.Level), entry.LoggerName, entry.Message, entry.Module, entry.Function, entry.Exception)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}
