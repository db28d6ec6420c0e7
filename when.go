package chainz

import "context"

// When creates a conditional Link that only executes when the predicate is
// true. When the condition returns false, the context passes through
// unchanged and the wrapped link has no side effects at all.
//
// The condition is evaluated synchronously on every invocation. This pattern
// keeps the branch decision explicit and testable instead of burying an
// if-statement inside the link. Use When for:
//   - Feature flags (run a step only for enabled users)
//   - Trigger-specific behavior (only for http contexts)
//   - Business rules that apply to a subset of contexts
//
// Example:
//
//	notify := chainz.When("notify_premium",
//	    func(_ context.Context, c chainz.Ctx) bool {
//	        return c.String("tier") == "premium"
//	    },
//	    sendPushNotification,
//	)
//
// When panics if cond or link is nil.
func When(name Name, cond func(context.Context, Ctx) bool, link Link) Func {
	if cond == nil {
		panic("chainz.When: nil condition for " + name)
	}
	if link == nil {
		panic("chainz.When: nil link for " + name)
	}
	return Func{
		name: name,
		fn: func(ctx context.Context, data Ctx) (Ctx, error) {
			if !cond(ctx, data) {
				return data, nil
			}
			return link.Process(ctx, data)
		},
	}
}
