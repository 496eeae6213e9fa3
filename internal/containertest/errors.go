package containertest

import (
	"errors"
	"fmt"
)

var (
	// ErrTestNotFound is returned for an unknown or already disposed test id.
	ErrTestNotFound = errors.New("container test not found")
	// ErrTestFailed is returned when acting on a test whose verdict is FAILURE.
	ErrTestFailed = errors.New("container test failed")
	// ErrInvalidPhase is returned when an operation doesn't fit the test's phase.
	ErrInvalidPhase = errors.New("container test is not in a valid phase for this operation")
	// ErrDisposed is returned once the manager has been disposed.
	ErrDisposed = errors.New("container test manager disposed")
	// ErrNilListener is returned by SetListener for a nil listener.
	ErrNilListener = errors.New("listener is nil")
)

// TaskError is a phase failure. Reason is shown to users as is.
type TaskError struct {
	Phase  Phase
	Reason string
	Cause  error
}

func (e *TaskError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Phase, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Phase, e.Reason, e.Cause)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

func failure(p Phase, reason string, cause error) (Status, error) {
	return StatusFailure, &TaskError{Phase: p, Reason: reason, Cause: cause}
}
