// Package chainz provides a lightweight library for composing named
// processing steps into observable chains with middleware tiers.
//
// # Overview
//
// chainz models a workflow as a Chain of Links, where every step receives a
// Ctx (an open string-keyed map) and returns a new one. Failures travel as
// context data instead of aborting the program: the engine captures every
// Go error, panic, and nil return under the context's error key and keeps
// the caller's control flow linear. This suits request/event plumbing where
// one bad record, one flaky dependency, or one buggy handler must never take
// the process down.
//
// # Core Concepts
//
// The library is built around a small set of uniform pieces:
//
//   - Ctx: the flowing value, a map[string]any with helpers for copying,
//     merging, and error inspection
//   - Link: the step interface with Process(context.Context, Ctx) (Ctx, error)
//   - Middleware: a Link attached around the links rather than among them
//   - Func: a named function adapter created by Apply
//   - Chain: the engine that runs links in order with middleware tiers
//
// Everything implements the Link interface, so chains nest inside chains and
// connectors wrap links without special cases.
//
// # Middleware Tiers
//
// A Chain runs four tiers on every invocation:
//
//   - OnInput: before the links; a failure here skips the links
//   - Before/After (per link, via OnLink): around one named link
//   - OnOutput: after the links, even when a link failed
//   - Use (global): last, after everything else
//
// Input and link failures short-circuit the remaining links; output and
// global middleware are lenient, so observability and cleanup always run.
//
// # Error Handling
//
// Chain.Run never returns an error and never panics. Inspect the result:
//
//	result := chain.Run(ctx, input)
//	if result.Failed() {
//	    var chainErr *chainz.Error
//	    if errors.As(result.Err(), &chainErr) {
//	        log.Printf("failed at %s", strings.Join(chainErr.Path, " -> "))
//	    }
//	}
//
// Links may also fail softly by storing any value under the error key
// themselves; such error values flow through untouched and trip the same
// short-circuiting.
//
// # Usage Example
//
// A signup flow with validation, recovery, and timing:
//
//	validate := chainz.Validate("signup-schema", chainz.RequireFields("email", "password"))
//
//	createAccount := chainz.Apply("create_account", func(ctx context.Context, data chainz.Ctx) (chainz.Ctx, error) {
//	    id, err := accounts.Create(ctx, data.String("email"))
//	    if err != nil {
//	        return data, err
//	    }
//	    return data.With("account_id", id), nil
//	})
//
//	chain := chainz.NewChain("signup", createAccount).
//	    OnInput(chainz.PerformanceTracker(), validate).
//	    OnOutput(chainz.Timing("signup")).
//	    Use(chainz.CatchErrors("friendly", chainz.UserFriendly("Could not sign you up.")))
//	defer chain.Close()
//
//	result := chain.Run(ctx, chainz.NewHTTPContext("POST", "/signup", nil, body, nil))
//
// # Observability
//
// Chains carry their own metrics registry, tracer, and hook bus. Counters
// and gauges cover runs, successes, failures, and per-run link progress;
// spans cover the run, each link, and each middleware step; hooks deliver
// ChainEvent values asynchronously via OnLinkComplete, OnComplete, and
// OnError. Close releases these resources.
//
// # Triggers
//
// The triggers subpackage adapts chains to the outside world: HTTP handlers
// (chi), schedules (robfig/cron), CLI commands (cobra), and an in-process
// message bus. Each trigger builds the matching Ctx constructor
// (NewHTTPContext, NewCronContext, NewCLIContext, NewMessageContext), runs
// the chain, and renders the result for its medium.
package chainz
