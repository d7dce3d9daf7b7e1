package auth

import (
	"sort"
	"sync"
)

// Registry stores configured federated providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]FederatedProvider
}

// NewRegistry creates a registry for federated providers.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]FederatedProvider)}
}

// Register adds a provider under its own name.
func (r *Registry) Register(provider FederatedProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// Provider returns the provider registered for name.
func (r *Registry) Provider(name string) (FederatedProvider, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[name]
	return provider, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
