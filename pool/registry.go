// Per-model pool registry. Exactly one pool exists per distinct model id
// for the registry's lifetime; all dispatch to a model passes through it.
// The registry is constructed by the composition root and injected, so
// tests can run isolated instances.

package pool

import (
	"log/slog"
	"sync"
)

// Registry owns the singleton-per-model-id pools. Pools are created
// lazily on first use and never destroyed.
type Registry struct {
	mu     sync.Mutex
	pools  map[string]*Pool
	cfg    Config
	logger *slog.Logger
}

// NewRegistry creates a pool registry with the given shared tuning.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		pools:  make(map[string]*Pool),
		cfg:    cfg,
		logger: logger,
	}
}

// Get returns the pool for the model id, creating it on first use.
func (r *Registry) Get(modelID string) *Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pools[modelID]; ok {
		return p
	}
	p := New(modelID, r.cfg, r.logger)
	r.pools[modelID] = p
	return p
}

// Stats returns snapshots for every pool created so far.
func (r *Registry) Stats() []Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Stats, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p.Stats())
	}
	return out
}
