package chainz

import "context"

// Link defines the interface for any component that can process a Ctx.
// It is the foundation of chainz: every adapted function, combinator,
// middleware, and Chain implements Link, so anything can compose with
// anything.
//
// Key design principles:
//   - Context support for timeout and cancellation
//   - Errors are returned, never panicked (the engine converts panics)
//   - Immutable by convention: return a modified copy, don't mutate input
//   - Named components for debugging and monitoring
//
// A Link that fails may do so two ways, and they are not equivalent:
// returning a Go error aborts the surrounding step and hands the error to
// the engine for capture, while returning a Ctx that carries an error value
// is ordinary data flow that the engine's short-circuit rules interpret.
type Link interface {
	Process(context.Context, Ctx) (Ctx, error)
	Name() Name
}

// Middleware is a Link mounted on a Chain's middleware tiers rather than in
// its link sequence. The alias is deliberate: any Link can run as middleware,
// and a whole Chain can be mounted as middleware of another Chain.
//
// What distinguishes middleware is placement and failure policy. Input-tier
// middleware (OnInput) runs before the links, and a failure there skips the
// link phase. Per-link middleware (OnLink) wraps one link into a unit that
// fails together. Output-tier (OnOutput) and global (Use) middleware always
// run, with each failure captured independently so one bad middleware cannot
// silence the rest of its tier.
type Middleware = Link

// Name is a type alias for link, chain, and middleware names.
// Using this type encourages storing names as constants rather than
// using inline strings throughout your code.
//
// Example:
//
//	const (
//	    ValidateOrderName  Name = "validate_order"
//	    EnrichCustomerName Name = "enrich_customer"
//	)
//
//	validate := chainz.Apply(ValidateOrderName, validateFunc)
type Name = string

// Func is a named function adapted into a Link. It is the basic building
// block created by Apply and returned by the stateless combinators (When,
// Transform, SetValues, FilterContext) and the middleware library.
//
// The fn field is intentionally private so links are only created through
// the provided constructors, keeping naming and error conventions uniform.
// The name appears in Error.Path, log output, and trace tags to identify
// exactly where failures occur.
//
// Best practices for link names:
//   - Use descriptive, action-oriented names ("validate_email", not "email")
//   - Include the operation type ("parse_json", "fetch_user", "log_event")
//   - Use consistent naming conventions across your application
type Func struct {
	fn   func(context.Context, Ctx) (Ctx, error)
	name Name
}

// Process implements the Link interface, allowing adapted functions to be
// used directly or composed into chains.
func (f Func) Process(ctx context.Context, data Ctx) (Ctx, error) {
	return f.fn(ctx, data)
}

// Name returns the name of the link for debugging and error reporting.
func (f Func) Name() Name {
	return f.name
}
