package chainz

import (
	"context"
	"errors"
	"log/slog"
)

// Bookkeeping keys written by RetryOn.
const (
	// KeyRetryCount counts how many times RetryOn has seen a matching error.
	KeyRetryCount = "retry_count"
	// KeyShouldRetry tells external re-run machinery whether another pass
	// is within budget.
	KeyShouldRetry = "should_retry"
)

// CatchErrors returns middleware that routes failed contexts through an
// error handler. A healthy context passes through untouched; a failed one
// is replaced by whatever the handler returns, which is how errors get
// cleared, translated into user-facing responses, or annotated for retry.
//
// Because failures flow as context data, CatchErrors works in any tier:
// place it on the output tier to handle whatever the links produced, or
// after a specific link to scope recovery to that link alone.
//
// Panics if handler is nil, as this indicates a programming error.
//
// Example:
//
//	chain := chainz.NewChain("checkout", reserve, charge).
//	    OnOutput(chainz.CatchErrors("friendly", chainz.UserFriendly("Something went wrong.")))
func CatchErrors(name Name, handler func(error, Ctx) Ctx) Func {
	if handler == nil {
		panic("chainz.CatchErrors: nil handler for " + name)
	}
	return Apply(name, func(_ context.Context, data Ctx) (Ctx, error) {
		if !data.Failed() {
			return data, nil
		}
		return handler(data.Err(), data), nil
	})
}

// LogAndContinue returns a handler that logs the failure and clears the
// error, letting the flow settle as a success. A nil logger falls back to
// slog.Default().
func LogAndContinue(logger *slog.Logger) func(error, Ctx) Ctx {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, data Ctx) Ctx {
		logger.LogAttrs(context.Background(), slog.LevelError, "error handled",
			slog.String("error", err.Error()),
			slog.Any("context", data),
		)
		out := data.Copy()
		delete(out, KeyError)
		return out
	}
}

// UserFriendly returns a handler that swaps the failure for a safe response
// payload. The error is cleared and the response carries the given message
// plus a user_friendly marker, so trigger adapters can reply without leaking
// internals.
func UserFriendly(message string) func(error, Ctx) Ctx {
	return func(_ error, data Ctx) Ctx {
		out := data.Copy()
		delete(out, KeyError)
		return out.WithResponse(Ctx{
			"message":       message,
			"user_friendly": true,
		})
	}
}

// RetryOn returns a handler that stamps retry bookkeeping when the failure
// matches one of the target errors (via errors.Is). A matching error bumps
// retry_count and sets should_retry while the count stays within maxRetries;
// past the budget should_retry flips to false. The error itself is kept in
// place either way - RetryOn describes what should happen, the machinery
// that re-runs the chain acts on it. Non-matching failures pass through
// untouched.
func RetryOn(maxRetries int, targets ...error) func(error, Ctx) Ctx {
	return func(err error, data Ctx) Ctx {
		matched := false
		for _, target := range targets {
			if errors.Is(err, target) {
				matched = true
				break
			}
		}
		if !matched {
			return data
		}

		count := data.Int(KeyRetryCount) + 1
		return data.Merge(Ctx{
			KeyRetryCount:  count,
			KeyShouldRetry: count <= maxRetries,
		})
	}
}
