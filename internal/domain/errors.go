package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrJobFinished = errors.New("job already finished")
)

// ValidationError reports malformed batch input. It is raised before any
// provider call and fails the whole batch.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Msg
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ProviderError carries the external generator's rejection or failure
// message. Scoped to a single batch item.
type ProviderError struct {
	Msg  string
	Code string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider: %s (%s)", e.Msg, e.Code)
	}
	return "provider: " + e.Msg
}

// TimeoutError indicates an asynchronous provider task did not reach a
// terminal status within the configured deadline.
type TimeoutError struct {
	TaskID string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s not terminal after %s", e.TaskID, e.After)
}

// CancelledError indicates cooperative cancellation was observed while
// waiting on a provider task.
type CancelledError struct {
	TaskID string
}

func (e *CancelledError) Error() string {
	return "task " + e.TaskID + " cancelled"
}

// StorageError wraps a persistence or transform failure that occurred after
// generation succeeded. The generated content is lost for that attempt.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies an error for logs and telemetry. Callers only ever
// see "failed" items; the kind keeps timeout, provider and storage failures
// distinguishable after the fact.
func ErrorKind(err error) string {
	var (
		validationErr *ValidationError
		providerErr   *ProviderError
		timeoutErr    *TimeoutError
		cancelledErr  *CancelledError
		storageErr    *StorageError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &providerErr):
		return "provider"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &cancelledErr):
		return "cancelled"
	case errors.As(err, &storageErr):
		return "storage"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
