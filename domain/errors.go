package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that an operation referenced an id that is not stored.
var ErrNotFound = errors.New("item not found")

// ValidationError is returned when an item misses a field required for a save.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// BackendError wraps a transport or storage failure of a persistence backend.
// Status carries the HTTP status for remote failures and is zero otherwise.
type BackendError struct {
	Op     string
	Status int
	Err    error
}

func (e *BackendError) Error() string {
	msg := "backend " + e.Op
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error { return e.Err }
