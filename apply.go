package chainz

import "context"

// Apply creates a Func from a function. Apply is the workhorse adapter - use
// it to turn any step of your workflow into a composable Link, whether it
// transforms the context, performs a side effect, or may fail.
//
// The function receives a context for timeout/cancellation support and the
// current Ctx. Return the next Ctx and nil on success. Returning a Go error
// aborts the surrounding step and the engine captures it into the context;
// returning ctx.WithError(err) instead records a failure as ordinary data
// that later links and middleware can inspect or recover from.
//
// Apply is ideal for:
//   - Business logic steps in a chain
//   - Validation that marks the context failed
//   - API and database calls that may error
//   - Custom middleware
//
// Example:
//
//	fetchUser := chainz.Apply("fetch_user", func(ctx context.Context, c chainz.Ctx) (chainz.Ctx, error) {
//	    user, err := store.Lookup(ctx, c.String("user_id"))
//	    if err != nil {
//	        return c, fmt.Errorf("lookup user: %w", err)
//	    }
//	    return c.With("user", user), nil
//	})
//
// Apply panics when fn is nil. A nil step is a programming error best caught
// at construction time, not midway through a run.
func Apply(name Name, fn func(context.Context, Ctx) (Ctx, error)) Func {
	if fn == nil {
		panic("chainz.Apply: nil function for " + name)
	}
	return Func{name: name, fn: fn}
}
