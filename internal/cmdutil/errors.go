package cmdutil

import (
	"errors"
	"fmt"
)

// FlagError marks bad flags or arguments. The entry point prints it with the
// command's usage and exits 2.
type FlagError struct {
	err error
}

func (e *FlagError) Error() string { return e.err.Error() }
func (e *FlagError) Unwrap() error { return e.err }

// FlagErrorf creates a FlagError with a formatted message.
func FlagErrorf(format string, args ...any) error {
	return &FlagError{err: fmt.Errorf(format, args...)}
}

// FlagErrorWrap wraps an existing error as a FlagError. Cobra's own flag
// parsing errors are routed through it by the root command.
func FlagErrorWrap(err error) error {
	return &FlagError{err: err}
}

// SilentError is returned by commands that already printed their failure.
// The entry point exits 1 without printing anything else.
var SilentError = errors.New("SilentError")
