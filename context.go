package chainz

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"time"
)

// Reserved context keys. These are conventions, not a schema: any link may
// read or write any key, but the engine and the middleware library give
// these specific meaning.
const (
	// KeyError marks the context as failed. The engine captures every link
	// and middleware failure under this key instead of returning an error
	// to the caller.
	KeyError = "error"

	// KeyResponse designates the externally visible result payload. Trigger
	// adapters read it to build their reply.
	KeyResponse = "response"

	// KeyTiming holds a map[string]float64 of label -> elapsed milliseconds.
	// Timing middleware merges into it, never replaces it.
	KeyTiming = "timing"

	// KeyPerformance holds a nested Ctx of performance measurements.
	// PerformanceTracker records its start time here.
	KeyPerformance = "performance"

	// KeyFromCache is set to true by Memoize when a cached result is returned.
	KeyFromCache = "from_cache"

	// KeyTrigger and KeyTimestamp are provenance stamps set by the context
	// constructors ("http", "cron", "cli", "message", or "unknown").
	KeyTrigger   = "trigger"
	KeyTimestamp = "timestamp"
)

// Ctx is the value that flows through a Chain: an open-ended mapping from
// string keys to arbitrary values, used both as pipeline state and as the
// error/result carrier.
//
// Ctx is conceptually immutable per step. Each Link and Middleware receives
// a Ctx and returns a new one; the With*, Merge, and Copy helpers make that
// cheap. The engine tolerates in-place mutation of its working copy, but
// never mutates the caller's map and never shares a Ctx between concurrent
// branches without cloning (see Parallel).
//
// Example:
//
//	ctx := chainz.NewHTTPContext("GET", "/users", nil, nil, nil)
//	ctx = ctx.With("user_id", 42)
//	if ctx.Failed() {
//	    log.Println(ctx.Err())
//	}
type Ctx map[string]any

// NewContext creates a context with the standard provenance stamps.
// The timestamp is recorded as an RFC 3339 string so the context stays
// JSON-friendly.
func NewContext(trigger string) Ctx {
	if trigger == "" {
		trigger = "unknown"
	}
	return Ctx{
		KeyTrigger:   trigger,
		KeyTimestamp: time.Now().Format(time.RFC3339Nano),
	}
}

// NewHTTPContext creates a context for an inbound HTTP request.
// Nil maps are replaced with empty ones so links can index them freely.
func NewHTTPContext(method, path string, query map[string]string, body map[string]any, headers map[string]string) Ctx {
	if query == nil {
		query = map[string]string{}
	}
	if body == nil {
		body = map[string]any{}
	}
	if headers == nil {
		headers = map[string]string{}
	}
	ctx := NewContext("http")
	ctx["method"] = method
	ctx["path"] = path
	ctx["query"] = query
	ctx["body"] = body
	ctx["headers"] = headers
	return ctx
}

// NewCronContext creates a context for a scheduled invocation.
func NewCronContext(schedule string) Ctx {
	ctx := NewContext("cron")
	ctx["schedule"] = schedule
	return ctx
}

// NewCLIContext creates a context for a command-line invocation.
func NewCLIContext(command string, args []string) Ctx {
	if args == nil {
		args = []string{}
	}
	ctx := NewContext("cli")
	ctx["command"] = command
	ctx["args"] = args
	return ctx
}

// NewMessageContext creates a context for a message delivered on a topic.
func NewMessageContext(topic string, payload any) Ctx {
	ctx := NewContext("message")
	ctx["topic"] = topic
	ctx["message"] = payload
	return ctx
}

// Copy returns a shallow copy of the context. Nested containers are shared
// with the receiver; use Clone when branches must not alias each other.
// A nil receiver yields an empty, usable Ctx.
func (c Ctx) Copy() Ctx {
	out := make(Ctx, len(c))
	maps.Copy(out, c)
	return out
}

// Clone returns a deep copy of the context. Nested Ctx values, string-keyed
// maps, and slices are copied recursively; other values are shared. Parallel
// clones its input once per branch so concurrent links cannot observe each
// other's writes.
func (c Ctx) Clone() Ctx {
	out := make(Ctx, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Ctx:
		return val.Clone()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		maps.Copy(out, val)
		return out
	case map[string]float64:
		out := make(map[string]float64, len(val))
		maps.Copy(out, val)
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// Merge returns a new context holding the receiver's keys overlaid with the
// overlay's keys. Overlay values win on conflict. Neither input is modified.
func (c Ctx) Merge(overlay Ctx) Ctx {
	out := c.Copy()
	maps.Copy(out, overlay)
	return out
}

// With returns a copy of the context with one key set.
func (c Ctx) With(key string, value any) Ctx {
	out := c.Copy()
	out[key] = value
	return out
}

// WithError returns a copy of the context marked failed with err.
func (c Ctx) WithError(err error) Ctx {
	return c.With(KeyError, err)
}

// WithResponse returns a copy of the context with the response payload set.
func (c Ctx) WithResponse(v any) Ctx {
	return c.With(KeyResponse, v)
}

// WithTiming returns a copy of the context with label recorded in the timing
// map. Existing timing entries are preserved: the map is merged, not replaced.
func (c Ctx) WithTiming(label string, ms float64) Ctx {
	timing := make(map[string]float64)
	if existing, ok := c[KeyTiming].(map[string]float64); ok {
		maps.Copy(timing, existing)
	}
	timing[label] = ms
	return c.With(KeyTiming, timing)
}

// Err returns the captured error, or nil when the context has not failed.
// A non-error value stored under the error key is wrapped so callers always
// get a real error back.
func (c Ctx) Err() error {
	v, ok := c[KeyError]
	if !ok || v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%v", v)
}

// Failed reports whether the context carries a captured error.
func (c Ctx) Failed() bool {
	v, ok := c[KeyError]
	return ok && v != nil
}

// Response returns the response payload, or nil when none is set.
func (c Ctx) Response() any {
	return c[KeyResponse]
}

// FromCache reports whether this context was served by Memoize.
func (c Ctx) FromCache() bool {
	v, _ := c[KeyFromCache].(bool)
	return v
}

// Timing returns the timing map, or nil when no timings were recorded.
func (c Ctx) Timing() map[string]float64 {
	t, _ := c[KeyTiming].(map[string]float64)
	return t
}

// String returns the string value stored under key, or "" when the key is
// missing or holds a different type.
func (c Ctx) String(key string) string {
	v, _ := c[key].(string)
	return v
}

// Bool returns the bool value stored under key, or false when the key is
// missing or holds a different type.
func (c Ctx) Bool(key string) bool {
	v, _ := c[key].(bool)
	return v
}

// Int returns the int value stored under key, or 0 when the key is missing
// or holds a different type.
func (c Ctx) Int(key string) int {
	v, _ := c[key].(int)
	return v
}

// MarshalJSON renders the context for logs and debug output. Contexts may
// hold values encoding/json refuses (captured errors, channels, functions),
// so errors are rendered via their string form, times as RFC 3339, and any
// other unencodable value through fmt.
func (c Ctx) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = jsonSafe(v)
	}
	return json.Marshal(out)
}

func jsonSafe(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case error:
		return val.Error()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case Ctx:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonSafe(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonSafe(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonSafe(item)
		}
		return out
	default:
		if _, err := json.Marshal(val); err != nil {
			return fmt.Sprintf("%v", val)
		}
		return val
	}
}

// LogValue implements slog.LogValuer so a Ctx logs as a structured group
// with deterministic key order.
func (c Ctx) LogValue() slog.Value {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, jsonSafe(c[k])))
	}
	return slog.GroupValue(attrs...)
}
