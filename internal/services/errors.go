package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUserInput marks invalid or missing arguments supplied by the user.
	ErrUserInput = errors.New("user input error")
	// ErrStoreCorruption marks an unreadable or malformed queue store. Fatal;
	// the store must never be silently reinitialized.
	ErrStoreCorruption = errors.New("store corruption")
	// ErrLockTimeout marks a bounded wait on the store lock expiring. Non-fatal;
	// the operation is skipped for this cycle and retried on the next poll.
	ErrLockTimeout = errors.New("lock timeout")
	// ErrExecution marks a task execution failure. Contained to the task record
	// and drives the retry transition.
	ErrExecution = errors.New("execution failure")
	// ErrConfiguration marks missing or invalid configuration. Non-retryable:
	// re-running cannot succeed without operator action.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a lookup for a task that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether a task failure should consume retry budget and
// requeue, rather than fail the task outright. Configuration and user-input
// errors cannot be fixed by retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrConfiguration) && !errors.Is(err, ErrUserInput)
}

// IsFatal reports whether an error must halt the whole subsystem instead of
// being contained to a single task.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStoreCorruption)
}

// ErrorDetails carries the classified parts of a wrapped error for structured
// logging.
type ErrorDetails struct {
	Kind    string
	Message string
	Cause   error
}

// Details classifies err against the sentinel markers and splits out the
// human-readable message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: "none"}
	}
	details := ErrorDetails{Kind: "transient", Message: strings.TrimSpace(err.Error()), Cause: err}
	switch {
	case errors.Is(err, ErrUserInput):
		details.Kind = "user_input"
	case errors.Is(err, ErrStoreCorruption):
		details.Kind = "store_corruption"
	case errors.Is(err, ErrLockTimeout):
		details.Kind = "lock_timeout"
	case errors.Is(err, ErrExecution):
		details.Kind = "execution"
	case errors.Is(err, ErrConfiguration):
		details.Kind = "configuration"
	case errors.Is(err, ErrNotFound):
		details.Kind = "not_found"
	}
	return details
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
