package chainz

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry holds named chains and links so trigger wiring, tests, and
// tooling can look them up without package-level tables. Registration is
// explicit, lookups are typed, and Close tears down every registered
// chain's observability in one place.
//
// Example:
//
//	opts, err := chainz.LoadOptions("chainz.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reg := chainz.NewRegistry(opts)
//	defer reg.Close()
//
//	reg.RegisterChain("signup", signupChain)
//	if chain, ok := reg.Chain("signup"); ok {
//	    chain.Run(ctx, input)
//	}
type Registry struct {
	logger *slog.Logger
	chains map[Name]*Chain
	links  map[Name]Link
	opts   Options
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry configured by opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:   opts,
		logger: slog.Default(),
		chains: make(map[Name]*Chain),
		links:  make(map[Name]Link),
	}
}

// WithLogger sets the logger used for registration records. A nil logger
// leaves the current one in place.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	if logger == nil {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
	return r
}

// Options returns the options this registry was built with.
func (r *Registry) Options() Options {
	return r.opts
}

// RegisterChain stores chain under name, replacing any previous entry.
// Panics if chain is nil, as this indicates a programming error.
func (r *Registry) RegisterChain(name Name, chain *Chain) {
	if chain == nil {
		panic("chainz.RegisterChain: nil chain for " + name)
	}
	r.mu.Lock()
	r.chains[name] = chain
	logger := r.logger
	r.mu.Unlock()

	if r.opts.EnableLogging {
		logger.Info("chain registered",
			slog.String("name", name),
			slog.String("environment", r.opts.Environment),
			slog.Int("links", chain.Len()),
		)
	}
}

// Chain returns the chain registered under name.
func (r *Registry) Chain(name Name) (*Chain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain, ok := r.chains[name]
	return chain, ok
}

// RegisterLink stores link under name, replacing any previous entry.
// Panics if link is nil, as this indicates a programming error.
func (r *Registry) RegisterLink(name Name, link Link) {
	if link == nil {
		panic("chainz.RegisterLink: nil link for " + name)
	}
	r.mu.Lock()
	r.links[name] = link
	logger := r.logger
	r.mu.Unlock()

	if r.opts.EnableLogging {
		logger.Info("link registered",
			slog.String("name", name),
			slog.String("environment", r.opts.Environment),
		)
	}
}

// Link returns the link registered under name.
func (r *Registry) Link(name Name) (Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	link, ok := r.links[name]
	return link, ok
}

// ChainNames returns the registered chain names in sorted order.
func (r *Registry) ChainNames() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]Name, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LinkNames returns the registered link names in sorted order.
func (r *Registry) LinkNames() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]Name, 0, len(r.links))
	for name := range r.links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close shuts down every registered chain and returns the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, chain := range r.chains {
		if err := chain.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
