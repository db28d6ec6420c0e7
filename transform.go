package chainz

import "context"

// Transform creates a Link that rewrites a single field of the context. The
// transformer receives the field's current value (nil when absent) and the
// whole context for reference, and its return value replaces the field. All
// other keys pass through untouched.
//
// Example:
//
//	normalize := chainz.Transform("normalize_email", "email",
//	    func(v any, _ chainz.Ctx) any {
//	        s, _ := v.(string)
//	        return strings.ToLower(strings.TrimSpace(s))
//	    },
//	)
//
// Transform panics if fn is nil.
func Transform(name Name, field string, fn func(value any, ctx Ctx) any) Func {
	if fn == nil {
		panic("chainz.Transform: nil transformer for " + name)
	}
	return Func{
		name: name,
		fn: func(_ context.Context, data Ctx) (Ctx, error) {
			return data.With(field, fn(data[field], data)), nil
		},
	}
}
