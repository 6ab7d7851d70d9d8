package taskpg

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the client configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidTask is returned when a task fails validation before it reaches the store
	ErrInvalidTask = errors.New("invalid task")

	// ErrTaskNotFound is returned when a task does not exist
	ErrTaskNotFound = errors.New("task not found")

	// ErrClientNotStarted is returned when calling Stop before Start
	ErrClientNotStarted = errors.New("client not started")

	// ErrClientAlreadyStarted is returned when Start is called twice
	ErrClientAlreadyStarted = errors.New("client already started")
)

// TaskError represents a failed task operation.
type TaskError struct {
	Op     string // Operation that failed
	TaskID string // Task ID if applicable
	Err    error  // Underlying error
}

// Error implements the error interface
func (e *TaskError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("%s (task=%s): %v", e.Op, e.TaskID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TaskError) Unwrap() error {
	return e.Err
}

// newTaskError wraps err with the operation and task id.
func newTaskError(op, taskID string, err error) *TaskError {
	return &TaskError{Op: op, TaskID: taskID, Err: err}
}
