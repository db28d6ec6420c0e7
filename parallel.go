package chainz

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// Parallel runs all links concurrently against the same input context and
// merges their results. Each link receives its own deep clone of the input,
// so every branch sees the identical pre-parallel state and none can observe
// another's writes. Once every branch settles, the results are merged in
// argument order onto a fresh accumulator: later links win on key conflict,
// making the merge deterministic even though branch side effects race.
//
// A failing branch does not abort its siblings. A Go error, panic, or nil
// return from a branch is captured as an error value in that branch's
// result before the merge, so the merged output carries the failure for the
// surrounding chain's guard to see while every other branch still lands.
//
// Use Parallel when you need:
//   - Independent lookups fanned out and stitched back together
//   - Multiple side effects to happen simultaneously
//   - To wait for all branches before continuing
//
// Important characteristics:
//   - All branches run regardless of individual failures
//   - Merge order is argument order, last write wins
//   - With no links the result is an empty context, not the input
//   - Context cancellation stops the wait and returns a captured error
//
// Example:
//
//	enrich := chainz.NewParallel("enrich",
//	    fetchProfile,
//	    fetchPreferences,
//	    fetchEntitlements,
//	)
//	chain := chainz.NewChain("load_user", authenticate, enrich, render)
type Parallel struct {
	name  Name
	links []Link
	mu    sync.RWMutex
}

// NewParallel creates a new Parallel connector over the given links.
// A nil link panics immediately.
func NewParallel(name Name, links ...Link) *Parallel {
	for i, link := range links {
		if link == nil {
			panic(fmt.Sprintf("chainz.NewParallel: nil link at position %d in %q", i, name))
		}
	}
	return &Parallel{
		name:  name,
		links: slices.Clone(links),
	}
}

// Process implements the Link interface.
func (p *Parallel) Process(ctx context.Context, input Ctx) (result Ctx, err error) {
	defer recoverFromPanic(&result, &err, p.name, input)

	p.mu.RLock()
	links := slices.Clone(p.links)
	p.mu.RUnlock()

	results := make([]Ctx, len(links))

	var wg sync.WaitGroup
	wg.Add(len(links))
	for i, link := range links {
		go func(i int, link Link) {
			defer wg.Done()
			results[i] = p.runBranch(ctx, link, input.Clone())
		}(i, link)
	}

	// Wait for completion or context cancellation
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return input, &Error{
			Err:       ctx.Err(),
			InputCtx:  input,
			Path:      []Name{p.name},
			Timeout:   errors.Is(ctx.Err(), context.DeadlineExceeded),
			Canceled:  errors.Is(ctx.Err(), context.Canceled),
			Timestamp: time.Now(),
		}
	}

	merged := make(Ctx)
	for _, branch := range results {
		maps.Copy(merged, branch)
	}
	return merged, nil
}

// runBranch executes one branch over its own clone of the input, capturing
// any failure into the branch's result instead of letting it escape.
func (p *Parallel) runBranch(ctx context.Context, link Link, input Ctx) Ctx {
	start := time.Now()
	out, err := p.invoke(ctx, link, input)
	if err != nil {
		var branchErr *Error
		if !errors.As(err, &branchErr) {
			branchErr = wrapError(link.Name(), err, input, time.Since(start))
		}
		return input.WithError(branchErr)
	}
	return out
}

func (*Parallel) invoke(ctx context.Context, link Link, input Ctx) (result Ctx, err error) {
	defer recoverFromPanic(&result, &err, link.Name(), input)

	result, err = link.Process(ctx, input)
	if err != nil {
		return input, err
	}
	if result == nil {
		return input, ErrNilContext
	}
	return result, nil
}

// Add appends links to the parallel execution list. Nil links panic.
func (p *Parallel) Add(links ...Link) *Parallel {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, link := range links {
		if link == nil {
			panic(fmt.Sprintf("chainz.Parallel.Add: nil link at position %d in %q", i, p.name))
		}
		p.links = append(p.links, link)
	}
	return p
}

// Len returns the number of links.
func (p *Parallel) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.links)
}

// Name returns the name of this connector.
func (p *Parallel) Name() Name {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// Close gracefully shuts down the connector.
func (*Parallel) Close() error {
	return nil
}
