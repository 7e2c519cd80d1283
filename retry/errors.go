package retry

import (
	"fmt"

	platformerrors "github.com/jmgilman/go/errors"
)

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Platform converts e into a platform error carrying the attempt count.
func (e *ExhaustedError) Platform() platformerrors.PlatformError {
	return platformerrors.WrapWithContext(e.Err, platformerrors.CodeExecutionFailed,
		"retries exhausted", map[string]interface{}{"attempts": e.Attempts})
}

// MustRaiseError marks a failure that bypassed retrying.
type MustRaiseError struct {
	Attempt int
	Err     error
}

func (e *MustRaiseError) Error() string {
	return fmt.Sprintf("unrecoverable failure on attempt %d: %v", e.Attempt+1, e.Err)
}

func (e *MustRaiseError) Unwrap() error { return e.Err }

// PermanentError marks a failure the policy does not consider retryable.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent failure: " + e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// PanicError is a recovered panic from inside an attempt.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panic: %v\nstack trace:\n%s", e.Value, e.Stack)
}
