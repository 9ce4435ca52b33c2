package router

import "sync"

// ProviderState bundles the circuit breaker and health monitor for one
// upstream provider. Grounded on the teacher's provider registry: a
// single process-wide map guarded by one RWMutex, instances looked up by
// name (§9 "shared circuit state").
type ProviderState struct {
	Breaker *Breaker
	Health  *HealthMonitor
}

// Registry is the process-wide map of provider name to its circuit
// breaker and health monitor. There is exactly one instance per
// provider, shared across every request goroutine that targets it.
type Registry struct {
	mu    sync.RWMutex
	state map[string]*ProviderState
	bcfg  BreakerConfig
	hcfg  HealthConfig
}

// NewRegistry returns an empty registry using cfg for any provider state
// it lazily creates.
func NewRegistry(bcfg BreakerConfig, hcfg HealthConfig) *Registry {
	return &Registry{
		state: make(map[string]*ProviderState),
		bcfg:  bcfg,
		hcfg:  hcfg,
	}
}

// Get returns the ProviderState for name, creating it on first use.
func (r *Registry) Get(name string) *ProviderState {
	r.mu.RLock()
	st, ok := r.state[name]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.state[name]; ok {
		return st
	}
	st = &ProviderState{
		Breaker: NewBreaker(r.bcfg),
		Health:  NewHealthMonitor(r.hcfg),
	}
	r.state[name] = st
	return st
}

// Providers returns the names of every provider with recorded state.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.state))
	for name := range r.state {
		names = append(names, name)
	}
	return names
}
