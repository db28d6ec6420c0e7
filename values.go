package chainz

import "context"

// SetValues creates a Link that overlays a fixed set of values onto the
// context. The overlay wins on key conflicts; everything else passes through.
// The values map is captured by reference, so treat it as frozen after
// construction.
//
// Example:
//
//	defaults := chainz.SetValues("defaults", chainz.Ctx{
//	    "page_size": 50,
//	    "locale":    "en",
//	})
func SetValues(name Name, values Ctx) Func {
	return Func{
		name: name,
		fn: func(_ context.Context, data Ctx) (Ctx, error) {
			return data.Merge(values), nil
		},
	}
}

// FilterContext creates a Link that rebuilds the context keeping only the
// key/value pairs the keep function approves. This is a full replacement,
// not a merge: dropped keys are gone from the result, including the reserved
// ones if keep rejects them.
//
// Example:
//
//	scrub := chainz.FilterContext("scrub_secrets", func(key string, _ any) bool {
//	    return !strings.HasPrefix(key, "secret_")
//	})
//
// FilterContext panics if keep is nil.
func FilterContext(name Name, keep func(key string, value any) bool) Func {
	if keep == nil {
		panic("chainz.FilterContext: nil predicate for " + name)
	}
	return Func{
		name: name,
		fn: func(_ context.Context, data Ctx) (Ctx, error) {
			out := make(Ctx, len(data))
			for k, v := range data {
				if keep(k, v) {
					out[k] = v
				}
			}
			return out, nil
		},
	}
}
