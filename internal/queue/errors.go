package queue

import "errors"

// Sentinel errors surfaced by QueueService and dispatched to HTTP status
// codes by the handler layer's handleQueueError switch.
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrInvalidType    = errors.New("task type is required")
	ErrNoItems        = errors.New("at least one item is required")
	ErrInvalidPayload = errors.New("item payload must be a JSON object")
	ErrInvalidScope   = errors.New("invalid purge scope")
	ErrForbiddenDebug = errors.New("operation requires debug mode")
	ErrStoreFailure   = errors.New("store operation failed")
)
