package chainz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Context keys written by Retry.
const (
	// KeyAttempt marks a successful pass with its attempt ordinal.
	KeyAttempt = "attempt"
	// KeyAttempts records the exhausted attempt budget on a failed pass.
	KeyAttempts = "attempts"
)

// Retry stamps attempt bookkeeping onto the flowing context and paces
// failure handling with fixed delays.
//
// A successful context passes through immediately with "attempt" set to 1.
// A failed context waits out one delay per remaining attempt in the budget
// (maxAttempts-1 waits) and then continues with "attempts" recording the
// budget size - the error value itself stays in place for downstream
// handlers. Retry never re-invokes upstream links; it provides the pacing
// and the bookkeeping that drive re-run decisions made elsewhere (see
// RetryOn for the handler that sets should_retry from the same keys).
//
// Context cancellation is honored during waits, so a dying request is not
// held hostage by its retry budget.
//
// Example:
//
//	chain := chainz.NewChain("billing", chargeCard).
//	    Use(chainz.NewRetry("charge-retry", 3, time.Second))
type Retry struct {
	clock       clockz.Clock
	name        Name
	delay       time.Duration
	mu          sync.RWMutex
	maxAttempts int
}

// NewRetry creates a new Retry connector.
// The maxAttempts parameter sets the attempt budget and is clamped to at
// least 1. The delay parameter sets the pause between attempts.
func NewRetry(name Name, maxAttempts int, delay time.Duration) *Retry {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Retry{
		name:        name,
		maxAttempts: maxAttempts,
		delay:       delay,
	}
}

// Process implements the Link interface.
func (r *Retry) Process(ctx context.Context, input Ctx) (result Ctx, err error) {
	defer recoverFromPanic(&result, &err, r.name, input)

	r.mu.RLock()
	maxAttempts := r.maxAttempts
	delay := r.delay
	clock := r.getClock()
	r.mu.RUnlock()

	if !input.Failed() {
		return input.With(KeyAttempt, 1), nil
	}

	// Don't sleep past the last attempt.
	for i := 0; i < maxAttempts-1; i++ {
		select {
		case <-clock.After(delay):
		case <-ctx.Done():
			return input, &Error{
				Err:       ctx.Err(),
				InputCtx:  input,
				Path:      []Name{r.name},
				Timeout:   errors.Is(ctx.Err(), context.DeadlineExceeded),
				Canceled:  errors.Is(ctx.Err(), context.Canceled),
				Timestamp: time.Now(),
			}
		}
	}

	return input.With(KeyAttempts, maxAttempts), nil
}

// SetMaxAttempts updates the attempt budget.
func (r *Retry) SetMaxAttempts(n int) *Retry {
	if n < 1 {
		n = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxAttempts = n
	return r
}

// GetMaxAttempts returns the current attempt budget.
func (r *Retry) GetMaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxAttempts
}

// SetDelay updates the pause between attempts.
func (r *Retry) SetDelay(d time.Duration) *Retry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
	return r
}

// GetDelay returns the current pause between attempts.
func (r *Retry) GetDelay() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.delay
}

// WithClock sets a custom clock for testing.
func (r *Retry) WithClock(clock clockz.Clock) *Retry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
	return r
}

// getClock returns the clock to use.
func (r *Retry) getClock() clockz.Clock {
	if r.clock == nil {
		return clockz.RealClock
	}
	return r.clock
}

// Name returns the name of this connector.
func (r *Retry) Name() Name {
	return r.name
}

// Close gracefully shuts down the connector.
func (*Retry) Close() error {
	return nil
}
