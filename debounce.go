package chainz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Debounce collapses bursts of calls into the most recent one.
// Each call schedules the wrapped link to run after the configured delay and
// cancels whatever call was still waiting, so only the last call of a burst
// actually invokes the link. Superseded callers settle immediately with an
// ErrDebounced error; the surviving caller blocks through the delay and
// returns the link's result.
//
// CRITICAL: Debounce is a STATEFUL connector - the pending slot is shared
// across calls, so it must be created once and reused. A Debounce created
// per request has nothing to supersede and degrades into a fixed delay.
//
// Context cancellation is honored while waiting: if the caller's context
// dies before the delay elapses, the call settles with a canceled error and
// releases the pending slot.
//
// Use Debounce for:
//   - Search-as-you-type lookups where only the final query matters
//   - Recomputing derived state after a burst of updates
//   - Rate-collapsing noisy event sources ahead of expensive links
//
// Example:
//
//	var searchDebounce = chainz.NewDebounce("search",
//	    chainz.Apply("query", runSearch),
//	    300*time.Millisecond,
//	)
type Debounce struct {
	link   Link
	clock  clockz.Clock
	cancel chan struct{}
	name   Name
	delay  time.Duration
	mu     sync.Mutex
}

// NewDebounce creates a new Debounce connector around link.
// Panics if link is nil, as this indicates a programming error.
func NewDebounce(name Name, link Link, delay time.Duration) *Debounce {
	if link == nil {
		panic("chainz.NewDebounce: nil link for " + name)
	}

	return &Debounce{
		name:  name,
		link:  link,
		delay: delay,
	}
}

// Process implements the Link interface.
func (d *Debounce) Process(ctx context.Context, input Ctx) (result Ctx, err error) {
	defer recoverFromPanic(&result, &err, d.name, input)

	d.mu.Lock()
	if d.cancel != nil {
		close(d.cancel)
	}
	cancel := make(chan struct{})
	d.cancel = cancel
	clock := d.getClock()
	delay := d.delay
	link := d.link
	d.mu.Unlock()

	select {
	case <-clock.After(delay):
	case <-cancel:
		return input, &Error{
			Err:       ErrDebounced,
			InputCtx:  input,
			Path:      []Name{d.name},
			Timestamp: time.Now(),
		}
	case <-ctx.Done():
		d.release(cancel)
		return input, &Error{
			Err:       ctx.Err(),
			InputCtx:  input,
			Path:      []Name{d.name},
			Timeout:   errors.Is(ctx.Err(), context.DeadlineExceeded),
			Canceled:  errors.Is(ctx.Err(), context.Canceled),
			Timestamp: time.Now(),
		}
	}

	// The delay elapsed without being superseded - this call is committed.
	// Later calls start their own cycle rather than canceling a running link.
	d.release(cancel)

	start := time.Now()
	out, err := link.Process(ctx, input)
	if err != nil {
		var chainErr *Error
		if errors.As(err, &chainErr) {
			chainErr.Path = append([]Name{d.name}, chainErr.Path...)
			return input, chainErr
		}
		return input, wrapError(d.name, err, input, time.Since(start))
	}
	if out == nil {
		return input, wrapError(d.name, ErrNilContext, input, time.Since(start))
	}
	return out, nil
}

// release clears the pending slot if it still belongs to this call.
func (d *Debounce) release(cancel chan struct{}) {
	d.mu.Lock()
	if d.cancel == cancel {
		d.cancel = nil
	}
	d.mu.Unlock()
}

// SetDelay updates the debounce delay.
func (d *Debounce) SetDelay(delay time.Duration) *Debounce {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
	return d
}

// GetDelay returns the current debounce delay.
func (d *Debounce) GetDelay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay
}

// WithClock sets a custom clock for testing.
func (d *Debounce) WithClock(clock clockz.Clock) *Debounce {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock = clock
	return d
}

// getClock returns the clock to use.
func (d *Debounce) getClock() clockz.Clock {
	if d.clock == nil {
		return clockz.RealClock
	}
	return d.clock
}

// Name returns the name of this connector.
func (d *Debounce) Name() Name {
	return d.name
}

// Close cancels any call still waiting out its delay.
// The canceled caller settles with ErrDebounced.
func (d *Debounce) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		close(d.cancel)
		d.cancel = nil
	}
	return nil
}
