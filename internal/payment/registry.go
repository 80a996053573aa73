package payment

import (
	"sort"
	"sync"
)

// Constructor builds a fresh, uninitialized gateway.
type Constructor func() Gateway

// Registry maps gateway type tags to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register inserts or overwrites the constructor for a type tag. It panics
// if ctor is nil.
func (r *Registry) Register(gatewayType string, ctor Constructor) {
	if ctor == nil {
		panic("payment: Register constructor is nil for " + gatewayType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[gatewayType] = ctor
}

// Create instantiates the gateway registered under gatewayType.
func (r *Registry) Create(gatewayType string) (Gateway, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[gatewayType]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnregisteredGatewayError{Type: gatewayType}
	}
	return ctor(), nil
}

// Registered returns the registered type tags in sorted order.
func (r *Registry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
