package chainz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNilContext is captured when a link or middleware returns a nil Ctx
	// without an error. The engine substitutes the step's input so the run
	// can keep flowing.
	ErrNilContext = errors.New("nil context returned")

	// ErrDebounced is returned to a Debounce caller whose pending invocation
	// was superseded by a newer call before the quiet period elapsed.
	ErrDebounced = errors.New("call superseded by newer call")
)

// Error provides rich context about chain execution failures. It wraps the
// underlying error with information about where and when the failure
// occurred, what context was being processed, and whether the failure was
// due to timeout or cancellation.
//
// Each wrapper a failure passes through prepends its name to Path, so the
// outermost error reads like a route to the failing step:
//
//	var chainErr *chainz.Error
//	if errors.As(result.Err(), &chainErr) {
//	    log.Printf("failed at: %s", strings.Join(chainErr.Path, " -> "))
//	}
type Error struct {
	InputCtx  Ctx
	Timestamp time.Time
	Err       error
	Path      []Name
	Duration  time.Duration
	Timeout   bool
	Canceled  bool
}

// Error implements the error interface, providing a detailed error message.
func (e *Error) Error() string {
	location := "chain"
	if len(e.Path) > 0 {
		location = strings.Join(e.Path, " -> ")
	}

	if e.Timeout {
		return fmt.Sprintf("%s timed out after %v: %v", location, e.Duration, e.Err)
	}
	if e.Canceled {
		return fmt.Sprintf("%s canceled after %v: %v", location, e.Duration, e.Err)
	}
	return fmt.Sprintf("%s failed after %v: %v", location, e.Duration, e.Err)
}

// Unwrap returns the underlying error, supporting error wrapping patterns.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error was caused by a timeout.
func (e *Error) IsTimeout() bool {
	return e.Timeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled returns true if the error was caused by cancellation.
func (e *Error) IsCanceled() bool {
	return e.Canceled || errors.Is(e.Err, context.Canceled)
}

// wrapError attaches name to err's failure path. An existing *Error gets the
// name prepended in place; any other error is wrapped fresh with timeout and
// cancellation detection.
func wrapError(name Name, err error, input Ctx, duration time.Duration) *Error {
	var chainErr *Error
	if errors.As(err, &chainErr) {
		chainErr.Path = append([]Name{name}, chainErr.Path...)
		return chainErr
	}
	return &Error{
		Err:       err,
		InputCtx:  input,
		Path:      []Name{name},
		Timestamp: time.Now(),
		Duration:  duration,
		Timeout:   errors.Is(err, context.DeadlineExceeded),
		Canceled:  errors.Is(err, context.Canceled),
	}
}

// recoverFromPanic converts a panicking step into an ordinary *Error so one
// misbehaving link cannot take down the process. The step's input is restored
// as the result.
func recoverFromPanic(result *Ctx, err *error, name Name, input Ctx) {
	if r := recover(); r != nil {
		*result = input
		*err = &Error{
			Err:       fmt.Errorf("panic: %v", r),
			InputCtx:  input,
			Path:      []Name{name},
			Timestamp: time.Now(),
		}
	}
}
