package jobq

import (
	"errors"
	"fmt"
)

var (
	// Not found errors.
	ErrJobNotFound = errors.New("jobq: job not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("jobq: job already exists")

	// State errors.
	ErrInvalidState = errors.New("jobq: invalid state transition")

	// Query errors.
	ErrInvalidRange = errors.New("jobq: offset and limit must not be negative")

	// Registration errors.
	ErrRegistryFrozen     = errors.New("jobq: handler registry is frozen")
	ErrInvalidConcurrency = errors.New("jobq: concurrency must be at least 1")

	// Lifecycle errors.
	ErrAlreadyStarted  = errors.New("jobq: manager already started")
	ErrNotStarted      = errors.New("jobq: manager not started")
	ErrShutdownTimeout = errors.New("jobq: shutdown timed out with jobs still active")

	// ErrHandlerFault marks a failure produced by a handler that panicked
	// instead of returning an error.
	ErrHandlerFault = errors.New("handler fault")
)

// UnknownTypeError is returned when a job type has no registered handler.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("jobq: no handler registered for job type %q", e.Type)
}

// DuplicateTypeError is returned when a handler is registered twice for
// the same job type.
type DuplicateTypeError struct {
	Type string
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("jobq: handler already registered for job type %q", e.Type)
}

// StoreError wraps a storage-layer failure with the operation that caused it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("jobq: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err as a StoreError. A nil err yields nil, and errors
// that are already a StoreError or a domain sentinel are returned as-is.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrJobAlreadyExists) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// InvalidStateError reports an operation attempted on a job whose status
// does not allow it. It matches ErrInvalidState with errors.Is.
type InvalidStateError struct {
	JobID  string
	Status string
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("jobq: cannot %s job %s in status %q", e.Op, e.JobID, e.Status)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }
