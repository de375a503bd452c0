package worker

import (
	"context"
	"errors"
	"time"
)

// Task is a unit of periodic maintenance.
type Task interface {
	// Name identifies the task in logs.
	Name() string

	// Interval is the time between runs.
	Interval() time.Duration

	// Run performs one pass. Return NewPermanentError to stop scheduling
	// the task.
	Run(ctx context.Context) error
}

// PermanentError wraps an error to indicate the task should not run again.
type PermanentError struct {
	Err error
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work with PermanentError.
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError creates a new PermanentError that wraps the given error.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent checks if an error is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
