package executor

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of execution failure classes. Callers branch on
// Kind, never on message text.
type ErrorKind string

const (
	// KindInvalidInput covers empty queries and malformed parameters.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindReadOnlyViolation is a write query rejected before dispatch.
	KindReadOnlyViolation ErrorKind = "read_only_violation"
	// KindTimeout is a query stopped by the execution deadline.
	KindTimeout ErrorKind = "timeout"
	// KindExecution is any failure reported by the store itself.
	KindExecution ErrorKind = "execution"
)

// ExecError is the error type every Executor method returns on failure.
type ExecError struct {
	Kind      ErrorKind
	Message   string
	ElapsedMs int64
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsTimeout reports whether err is an execution timeout.
func IsTimeout(err error) bool {
	var execErr *ExecError
	return errors.As(err, &execErr) && execErr.Kind == KindTimeout
}
