package chainz

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for the Chain engine.
const (
	// Metrics.
	ChainProcessedTotal = metricz.Key("chain.processed.total")
	ChainSuccessesTotal = metricz.Key("chain.successes.total")
	ChainFailuresTotal  = metricz.Key("chain.failures.total")
	ChainLinksCompleted = metricz.Key("chain.links.completed")
	ChainLinkCount      = metricz.Key("chain.link.count")
	ChainDurationMs     = metricz.Key("chain.duration.ms")

	// Spans.
	ChainRunSpan        = tracez.Key("chain.run")
	ChainLinkSpan       = tracez.Key("chain.link")
	ChainMiddlewareSpan = tracez.Key("chain.middleware")

	// Tags.
	ChainTagLinkCount = tracez.Tag("chain.link_count")
	ChainTagLinkName  = tracez.Tag("chain.link_name")
	ChainTagTier      = tracez.Tag("chain.tier")
	ChainTagSuccess   = tracez.Tag("chain.success")
	ChainTagError     = tracez.Tag("chain.error")

	// Hook event keys.
	ChainEventLinkComplete  = hookz.Key("chain.link_complete")
	ChainEventComplete      = hookz.Key("chain.complete")
	ChainEventErrorCaptured = hookz.Key("chain.error_captured")
)

// Middleware tier names as they appear in trace tags and ChainEvent.Tier.
const (
	TierInput  = "on_input"
	TierLink   = "link"
	TierOutput = "on_output"
	TierGlobal = "global"
)

// ChainEvent represents a chain execution event.
// This is emitted via hookz as links complete, as failures are captured,
// and when a run finishes, providing visibility into pipeline progress.
type ChainEvent struct {
	Name           Name          // Chain name
	LinkName       Name          // Name of the link or middleware
	Tier           string        // Tier the step ran in (on_input, link, on_output, global)
	LinkNumber     int           // Current link number (1-based, link tier only)
	TotalLinks     int           // Total number of links
	Success        bool          // Whether the step or run succeeded
	Error          error         // Error if the step or run failed
	Duration       time.Duration // How long this step took
	CompletedLinks int           // Number of links completed (for complete)
	TotalDuration  time.Duration // Total run time (for complete)
	Timestamp      time.Time     // When the event occurred
}

// Chain sequences links over a flowing Ctx with three middleware tiers.
// It is the execution engine of chainz: given an ordered list of links and
// the configured middleware, Run produces the final context deterministically
// and never raises - every failure is captured into the returned context's
// error key.
//
// A run moves through four phases in fixed order:
//
//  1. on_input middleware, each feeding the next. A failure captures the
//     error and ends the phase; the link phase is then skipped.
//  2. Links in order. The loop is guarded: once the context carries an
//     error, remaining links do not run (short-circuit). Each link executes
//     wrapped in its per-link before/after middleware as a single unit.
//  3. on_output middleware, always - cleanup, formatting, and logging get a
//     chance to run even after a failure. Each middleware's own failure is
//     captured independently without stopping the rest of the tier.
//  4. Global middleware (Use) last, same lenient policy. Global middleware
//     sees the final state including output middleware's additions.
//
// Within a step, returning a Go error and returning a Ctx with an error
// value are both captured the same way; the difference is that an error
// value is ordinary data a later CatchErrors can clear, while a Go error
// additionally aborts the step's remaining per-link middleware.
//
// Chain itself implements Link, so chains nest: a failure inside a nested
// chain surfaces as an error value the outer link loop's guard reacts to.
//
// Key features:
//   - Thread-safe for concurrent access
//   - Invocations share no per-call state
//   - Named links for debugging
//   - Error-as-value propagation with rich *Error wrapping
//
// # Observability
//
// Chain provides comprehensive observability through metrics, tracing, and events:
//
// Metrics:
//   - chain.processed.total: Counter of chain runs
//   - chain.successes.total: Counter of runs that finished without error
//   - chain.failures.total: Counter of runs that finished with error
//   - chain.links.completed: Gauge of links completed in the latest run
//   - chain.link.count: Gauge of total links
//   - chain.duration.ms: Gauge of total run duration
//
// Traces:
//   - chain.run: Parent span for the entire run
//   - chain.link: Child span for each link
//   - chain.middleware: Child span for each middleware step, tagged with its tier
//
// Events (via hooks):
//   - chain.link_complete: Fired as each link unit completes
//   - chain.complete: Fired when a run finishes, success or not
//   - chain.error_captured: Fired each time a failure is captured
//
// Example with hooks:
//
//	const SignupChainName = chainz.Name("signup")
//	signup := chainz.NewChain(SignupChainName,
//	    validateEmail,
//	    createAccount,
//	    sendWelcome,
//	)
//	signup.OnInput(chainz.Validate("require_email", chainz.RequireFields("email")))
//	signup.Use(chainz.Logging(logger))
//
//	signup.OnLinkComplete(func(ctx context.Context, event chainz.ChainEvent) error {
//	    log.Printf("link %d/%d done: %s", event.LinkNumber, event.TotalLinks, event.LinkName)
//	    return nil
//	})
//
//	result := signup.Run(ctx, chainz.NewHTTPContext("POST", "/signup", nil, body, nil))
//	if result.Failed() {
//	    log.Println(result.Err())
//	}
type Chain struct {
	name     Name
	links    []Link
	onInput  []Middleware
	onOutput []Middleware
	global   []Middleware
	before   map[Name][]Middleware
	after    map[Name][]Middleware
	mu       sync.RWMutex
	metrics  *metricz.Registry
	tracer   *tracez.Tracer
	hooks    *hookz.Hooks[ChainEvent]
}

// NewChain creates a Chain over the given links. The link list is fixed at
// construction; middleware can be added afterward with Use, OnInput,
// OnOutput, and OnLink. A nil link is a programming error and panics
// immediately rather than failing at run time.
//
// Example:
//
//	chain := chainz.NewChain("checkout",
//	    validateCart,
//	    reserveStock,
//	    chargeCard,
//	)
func NewChain(name Name, links ...Link) *Chain {
	for i, link := range links {
		if link == nil {
			panic(fmt.Sprintf("chainz.NewChain: nil link at position %d in %q", i, name))
		}
	}

	// Initialize observability
	metrics := metricz.New()
	metrics.Counter(ChainProcessedTotal)
	metrics.Counter(ChainSuccessesTotal)
	metrics.Counter(ChainFailuresTotal)
	metrics.Gauge(ChainLinksCompleted)
	metrics.Gauge(ChainLinkCount)
	metrics.Gauge(ChainDurationMs)

	return &Chain{
		name:    name,
		links:   slices.Clone(links),
		before:  make(map[Name][]Middleware),
		after:   make(map[Name][]Middleware),
		metrics: metrics,
		tracer:  tracez.New(),
		hooks:   hookz.New[ChainEvent](),
	}
}

// Use appends global middleware, the last tier of every run. Global
// middleware always executes and sees the final state including output
// middleware's additions. Returns the Chain for fluent registration.
// Nil middleware panics.
func (c *Chain) Use(mw ...Middleware) *Chain {
	c.appendTier(&c.global, "Use", mw)
	return c
}

// OnInput appends input-tier middleware, run before the links on every run.
// Returns the Chain for fluent registration. Nil middleware panics.
func (c *Chain) OnInput(mw ...Middleware) *Chain {
	c.appendTier(&c.onInput, "OnInput", mw)
	return c
}

// OnOutput appends output-tier middleware, run after the links on every run
// whether or not an error was captured. Returns the Chain for fluent
// registration. Nil middleware panics.
func (c *Chain) OnOutput(mw ...Middleware) *Chain {
	c.appendTier(&c.onOutput, "OnOutput", mw)
	return c
}

func (c *Chain) appendTier(tier *[]Middleware, method string, mw []Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range mw {
		if m == nil {
			panic(fmt.Sprintf("chainz.Chain.%s: nil middleware at position %d in %q", method, i, c.name))
		}
		*tier = append(*tier, m)
	}
}

// LinkHooks configures middleware that wraps one named link. Obtain it from
// Chain.OnLink. Before and After return the same LinkHooks for fluent
// registration.
type LinkHooks struct {
	chain *Chain
	name  Name
}

// OnLink returns the per-link middleware registration for the named link.
// Before middleware runs ahead of the link, After middleware behind it, and
// the wrapped unit occupies the link's position in the sequence: a Go error
// anywhere in the unit aborts the whole unit.
//
//	chain.OnLink("charge_card").
//	    Before(chainz.PerformanceTracker()).
//	    After(chainz.Timing("charge_card"))
func (c *Chain) OnLink(name Name) *LinkHooks {
	return &LinkHooks{chain: c, name: name}
}

// Before appends middleware that runs ahead of the hooked link.
// Nil middleware panics.
func (h *LinkHooks) Before(mw ...Middleware) *LinkHooks {
	h.chain.appendLinkTier(h.chain.before, h.name, mw)
	return h
}

// After appends middleware that runs behind the hooked link.
// Nil middleware panics.
func (h *LinkHooks) After(mw ...Middleware) *LinkHooks {
	h.chain.appendLinkTier(h.chain.after, h.name, mw)
	return h
}

func (c *Chain) appendLinkTier(table map[Name][]Middleware, name Name, mw []Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range mw {
		if m == nil {
			panic(fmt.Sprintf("chainz.Chain.OnLink: nil middleware at position %d for %q", i, name))
		}
		table[name] = append(table[name], m)
	}
}

// Run executes the chain on input and returns the final context. Run never
// returns an error and never panics across its boundary: link errors, panics,
// nil-context returns, and context cancellation are all captured into the
// returned context's error key as a *Error.
//
// The caller's map is never mutated; Run works on a shallow copy. A nil
// input behaves as an empty context and a nil ctx as context.Background().
//
// Run is thread-safe. Concurrent runs of the same chain are independent:
// the configuration is snapshotted at entry and invocations share no
// per-call state.
func (c *Chain) Run(ctx context.Context, input Ctx) (result Ctx) {
	// One misbehaving Name() or hook must not breach the no-panic contract.
	defer func() {
		if r := recover(); r != nil {
			if result == nil {
				result = input.Copy()
			}
			result = result.WithError(&Error{
				Err:       fmt.Errorf("panic: %v", r),
				InputCtx:  input,
				Path:      []Name{c.name},
				Timestamp: time.Now(),
			})
		}
	}()

	c.mu.RLock()
	links := slices.Clone(c.links)
	onInput := slices.Clone(c.onInput)
	onOutput := slices.Clone(c.onOutput)
	global := slices.Clone(c.global)
	before := make(map[Name][]Middleware, len(c.before))
	for name, mws := range c.before {
		before[name] = slices.Clone(mws)
	}
	after := make(map[Name][]Middleware, len(c.after))
	for name, mws := range c.after {
		after[name] = slices.Clone(mws)
	}
	c.mu.RUnlock()

	// Handle nil context
	if ctx == nil {
		ctx = context.Background()
	}

	result = input.Copy()
	completed := 0

	// Track metrics
	c.metrics.Counter(ChainProcessedTotal).Inc()
	c.metrics.Gauge(ChainLinkCount).Set(float64(len(links)))
	start := time.Now()

	// Start main span
	ctx, span := c.tracer.StartSpan(ctx, ChainRunSpan)
	span.SetTag(ChainTagLinkCount, fmt.Sprintf("%d", len(links)))
	defer func() {
		// Record duration
		elapsed := time.Since(start)
		c.metrics.Gauge(ChainDurationMs).Set(float64(elapsed.Milliseconds()))

		// Set success status
		if result.Failed() {
			span.SetTag(ChainTagSuccess, "false")
			span.SetTag(ChainTagError, result.Err().Error())
			c.metrics.Counter(ChainFailuresTotal).Inc()
		} else {
			span.SetTag(ChainTagSuccess, "true")
			c.metrics.Counter(ChainSuccessesTotal).Inc()
		}
		span.Finish()

		_ = c.hooks.Emit(ctx, ChainEventComplete, ChainEvent{ //nolint:errcheck
			Name:           c.name,
			TotalLinks:     len(links),
			CompletedLinks: completed,
			Success:        !result.Failed(),
			Error:          result.Err(),
			TotalDuration:  elapsed,
			Timestamp:      time.Now(),
		})
	}()

	// Input tier: each middleware feeds the next. A failure ends the phase,
	// and the error it captures makes the link loop a no-op below.
	for _, mw := range onInput {
		stepStart := time.Now()
		out, err := c.step(ctx, TierInput, mw, result)
		if err != nil {
			result = c.capture(ctx, result, TierInput, mw.Name(), err, time.Since(stepStart))
			break
		}
		result = out
		if result.Failed() {
			break
		}
	}

	// Link phase: guarded loop, stops at the first captured error.
	for i, link := range links {
		if result.Failed() {
			break
		}

		// Check context before starting the link
		select {
		case <-ctx.Done():
			result = c.capture(ctx, result, TierLink, link.Name(), ctx.Err(), time.Since(start))
		default:
		}
		if result.Failed() {
			break
		}

		unitStart := time.Now()
		out, err := c.runLink(ctx, link, before[link.Name()], after[link.Name()], result)
		unitDuration := time.Since(unitStart)

		if err != nil {
			_ = c.hooks.Emit(ctx, ChainEventLinkComplete, ChainEvent{ //nolint:errcheck
				Name:       c.name,
				LinkName:   link.Name(),
				Tier:       TierLink,
				LinkNumber: i + 1,
				TotalLinks: len(links),
				Success:    false,
				Error:      err,
				Duration:   unitDuration,
				Timestamp:  time.Now(),
			})
			result = c.capture(ctx, result, TierLink, link.Name(), err, unitDuration)
			break
		}

		result = out
		completed++
		c.metrics.Gauge(ChainLinksCompleted).Set(float64(completed))

		_ = c.hooks.Emit(ctx, ChainEventLinkComplete, ChainEvent{ //nolint:errcheck
			Name:       c.name,
			LinkName:   link.Name(),
			Tier:       TierLink,
			LinkNumber: i + 1,
			TotalLinks: len(links),
			Success:    true,
			Duration:   unitDuration,
			Timestamp:  time.Now(),
		})
	}

	// Output tier: always runs, each failure captured independently so one
	// bad middleware does not prevent later ones.
	for _, mw := range onOutput {
		stepStart := time.Now()
		out, err := c.step(ctx, TierOutput, mw, result)
		if err != nil {
			result = c.capture(ctx, result, TierOutput, mw.Name(), err, time.Since(stepStart))
			continue
		}
		result = out
	}

	// Global tier: same lenient policy, sees the final state.
	for _, mw := range global {
		stepStart := time.Now()
		out, err := c.step(ctx, TierGlobal, mw, result)
		if err != nil {
			result = c.capture(ctx, result, TierGlobal, mw.Name(), err, time.Since(stepStart))
			continue
		}
		result = out
	}

	return result
}

// runLink executes one link wrapped in its before/after middleware as a
// single unit. A Go error or panic from any member aborts the unit and the
// caller discards the unit's partial progress; an error value in the flowing
// context passes through the remaining members as ordinary data.
func (c *Chain) runLink(ctx context.Context, link Link, before, after []Middleware, input Ctx) (result Ctx, err error) {
	defer recoverFromPanic(&result, &err, link.Name(), input)

	result = input
	for _, mw := range before {
		if result, err = c.step(ctx, TierLink, mw, result); err != nil {
			return result, err
		}
	}

	linkCtx, span := c.tracer.StartSpan(ctx, ChainLinkSpan)
	span.SetTag(ChainTagLinkName, string(link.Name()))
	span.SetTag(ChainTagTier, TierLink)
	out, linkErr := link.Process(linkCtx, result)
	span.Finish()
	if linkErr != nil {
		return result, linkErr
	}
	if out == nil {
		return result, ErrNilContext
	}
	result = out

	for _, mw := range after {
		if result, err = c.step(ctx, TierLink, mw, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// step runs one middleware under a span and panic recovery. The tier is
// tagged on the span so traces distinguish the same middleware mounted on
// different tiers. On a Go error the input context is returned untouched.
func (c *Chain) step(ctx context.Context, tier string, mw Middleware, input Ctx) (result Ctx, err error) {
	defer recoverFromPanic(&result, &err, mw.Name(), input)

	mwCtx, span := c.tracer.StartSpan(ctx, ChainMiddlewareSpan)
	span.SetTag(ChainTagLinkName, string(mw.Name()))
	span.SetTag(ChainTagTier, tier)
	defer span.Finish()

	result, err = mw.Process(mwCtx, input)
	if err != nil {
		return input, err
	}
	if result == nil {
		return input, ErrNilContext
	}
	return result, nil
}

// capture folds a Go error from a step into the working context as an error
// value, wrapping it in *Error with the chain's name prepended to the path.
// This is the only way step failures reach the caller.
func (c *Chain) capture(ctx context.Context, result Ctx, tier string, name Name, err error, duration time.Duration) Ctx {
	var chainErr *Error
	if !errors.As(err, &chainErr) {
		chainErr = wrapError(name, err, result, duration)
	}
	chainErr.Path = append([]Name{c.name}, chainErr.Path...)

	_ = c.hooks.Emit(ctx, ChainEventErrorCaptured, ChainEvent{ //nolint:errcheck
		Name:      c.name,
		LinkName:  name,
		Tier:      tier,
		Success:   false,
		Error:     chainErr,
		Duration:  duration,
		Timestamp: time.Now(),
	})

	return result.WithError(chainErr)
}

// Process implements Link so chains nest inside other chains. The returned
// error is always nil: failures stay inside the returned context, where the
// outer chain's guard sees them.
func (c *Chain) Process(ctx context.Context, input Ctx) (Ctx, error) {
	return c.Run(ctx, input), nil
}

// Len returns the number of links in the Chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.links)
}

// Names returns the names of all links in order.
func (c *Chain) Names() []Name {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]Name, len(c.links))
	for i, link := range c.links {
		names[i] = link.Name()
	}
	return names
}

// Name returns the name of this chain.
func (c *Chain) Name() Name {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Metrics returns the metrics registry for this chain.
func (c *Chain) Metrics() *metricz.Registry {
	return c.metrics
}

// Tracer returns the tracer for this chain.
func (c *Chain) Tracer() *tracez.Tracer {
	return c.tracer
}

// Close gracefully shuts down observability components.
func (c *Chain) Close() error {
	if c.tracer != nil {
		c.tracer.Close()
	}
	c.hooks.Close()
	return nil
}

// OnLinkComplete registers a handler for when a link unit completes. The
// handler is called asynchronously each time a link finishes, whether it
// succeeds or fails.
func (c *Chain) OnLinkComplete(handler func(context.Context, ChainEvent) error) error {
	_, err := c.hooks.Hook(ChainEventLinkComplete, handler)
	return err
}

// OnComplete registers a handler for when a run finishes. The handler is
// called asynchronously after every run; Success reports whether the final
// context carries an error.
func (c *Chain) OnComplete(handler func(context.Context, ChainEvent) error) error {
	_, err := c.hooks.Hook(ChainEventComplete, handler)
	return err
}

// OnError registers a handler for when a failure is captured into the
// flowing context, in any tier. The event carries the wrapped *Error.
func (c *Chain) OnError(handler func(context.Context, ChainEvent) error) error {
	_, err := c.hooks.Hook(ChainEventErrorCaptured, handler)
	return err
}
