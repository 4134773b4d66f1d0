package strategy

import (
	"fmt"
	"sync"

	"mpcal/domain/core"
	"mpcal/ports"
)

// Registry resolves configured strategy names to implementations
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]ports.Strategy
	order      []string
}

var _ ports.StrategyRegistry = (*Registry)(nil)

// NewRegistry creates a registry holding every built-in strategy
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]ports.Strategy)}
	r.Register(NewPlackettLuce())
	r.Register(NewBradleyTerry())
	r.Register(NewPairwise())
	r.Register(NewMallowsTau())
	r.Register(NewMallows())
	return r
}

// Register adds or replaces a strategy under its own name
func (r *Registry) Register(s ports.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[s.Name()]; !exists {
		r.order = append(r.order, s.Name())
	}
	r.strategies[s.Name()] = s
}

// Get returns the strategy registered under name (case-sensitive)
func (r *Registry) Get(name string) (ports.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownStrategy, name)
	}
	return s, nil
}

// Names lists registered strategies in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
