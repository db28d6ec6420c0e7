package chainz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
)

// Metric keys for Memoize observability.
const (
	// MemoizeHitsTotal counts lookups served from the cache.
	MemoizeHitsTotal = metricz.Key("memoize.hits.total")
	// MemoizeMissesTotal counts lookups that invoked the wrapped link.
	MemoizeMissesTotal = metricz.Key("memoize.misses.total")
	// MemoizeEvictionsTotal counts entries removed by TTL sweeps.
	MemoizeEvictionsTotal = metricz.Key("memoize.evictions.total")
	// MemoizeEntries tracks the current number of cached entries.
	MemoizeEntries = metricz.Key("memoize.entries")
)

// memoEntry is a cached result with its expiry deadline.
type memoEntry struct {
	expires time.Time
	result  Ctx
}

// Memoize caches the wrapped link's results, keyed by a caller-provided key
// function, and serves repeat calls from the cache until the entry's TTL
// lapses. A cache hit returns a shallow copy of the stored context with
// "from_cache" set to true; the computing call's result is returned without
// the marker, so callers can always tell a computed result from a cached one.
//
// CRITICAL: Memoize is a STATEFUL connector that shares its cache across
// calls. Create it once and reuse it - a Memoize created per request caches
// nothing.
//
// ❌ WRONG - Creating per request (always misses):
//
//	func handle(ctx context.Context, data chainz.Ctx) chainz.Ctx {
//	    memo := chainz.NewMemoize("lookup", keyFn, lookup, time.Minute) // NEW cache each time!
//	    result, _ := memo.Process(ctx, data)
//	    return result
//	}
//
// ✅ RIGHT - Package-level singleton:
//
//	var lookupMemo = chainz.NewMemoize("lookup", keyFn, lookup, time.Minute)
//
// Expired entries are swept whenever a fresh result is stored, so the cache
// holds at most the entries still inside their TTL plus the newest result.
// Failed invocations (Go errors, panics, nil returns) are never cached; a
// context that merely carries an "error" value is a result like any other
// and is cached normally.
//
// Example:
//
//	memo := chainz.NewMemoize("geo-lookup",
//	    func(data chainz.Ctx) string { return data.String("ip") },
//	    chainz.Apply("resolve", resolveIP),
//	    5*time.Minute,
//	)
type Memoize struct {
	keyFn   func(Ctx) string
	link    Link
	clock   clockz.Clock
	metrics *metricz.Registry
	cache   map[string]memoEntry
	name    Name
	ttl     time.Duration
	mu      sync.Mutex
}

// NewMemoize creates a new Memoize connector around link.
// The keyFn derives the cache key from the incoming context; calls that map
// to the same key share a cached result for up to ttl.
// Panics if keyFn or link is nil, as this indicates a programming error.
func NewMemoize(name Name, keyFn func(Ctx) string, link Link, ttl time.Duration) *Memoize {
	if keyFn == nil {
		panic("chainz.NewMemoize: nil key function for " + name)
	}
	if link == nil {
		panic("chainz.NewMemoize: nil link for " + name)
	}

	metrics := metricz.New()
	metrics.Counter(MemoizeHitsTotal)
	metrics.Counter(MemoizeMissesTotal)
	metrics.Counter(MemoizeEvictionsTotal)
	metrics.Gauge(MemoizeEntries)

	return &Memoize{
		name:    name,
		keyFn:   keyFn,
		link:    link,
		ttl:     ttl,
		cache:   make(map[string]memoEntry),
		metrics: metrics,
	}
}

// Process implements the Link interface.
func (m *Memoize) Process(ctx context.Context, input Ctx) (result Ctx, err error) {
	defer recoverFromPanic(&result, &err, m.name, input)

	key := m.keyFn(input)

	m.mu.Lock()
	clock := m.getClock()
	if entry, ok := m.cache[key]; ok && entry.expires.After(clock.Now()) {
		m.mu.Unlock()
		m.metrics.Counter(MemoizeHitsTotal).Inc()
		return entry.result.With(KeyFromCache, true), nil
	}
	m.mu.Unlock()

	m.metrics.Counter(MemoizeMissesTotal).Inc()

	start := clock.Now()
	fresh, err := m.link.Process(ctx, input)
	if err != nil {
		var chainErr *Error
		if errors.As(err, &chainErr) {
			chainErr.Path = append([]Name{m.name}, chainErr.Path...)
			return input, chainErr
		}
		return input, wrapError(m.name, err, input, clock.Since(start))
	}
	if fresh == nil {
		return input, wrapError(m.name, ErrNilContext, input, clock.Since(start))
	}

	m.mu.Lock()
	now := clock.Now()
	m.cache[key] = memoEntry{result: fresh.Copy(), expires: now.Add(m.ttl)}
	for k, entry := range m.cache {
		if !entry.expires.After(now) {
			delete(m.cache, k)
			m.metrics.Counter(MemoizeEvictionsTotal).Inc()
		}
	}
	m.metrics.Gauge(MemoizeEntries).Set(float64(len(m.cache)))
	m.mu.Unlock()

	return fresh, nil
}

// Len returns the number of cached entries, including any not yet swept.
func (m *Memoize) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

// Clear drops every cached entry.
func (m *Memoize) Clear() *Memoize {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]memoEntry)
	m.metrics.Gauge(MemoizeEntries).Set(0)
	return m
}

// WithClock sets a custom clock for testing.
func (m *Memoize) WithClock(clock clockz.Clock) *Memoize {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
	return m
}

// getClock returns the clock to use.
func (m *Memoize) getClock() clockz.Clock {
	if m.clock == nil {
		return clockz.RealClock
	}
	return m.clock
}

// Metrics returns the metrics registry for this connector.
func (m *Memoize) Metrics() *metricz.Registry {
	return m.metrics
}

// Name returns the name of this connector.
func (m *Memoize) Name() Name {
	return m.name
}

// Close gracefully shuts down the connector.
func (*Memoize) Close() error {
	return nil
}
