package payment

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/settings"
)

// Factory builds a driver from the payment settings group and the transport config.
type Factory func(s settings.Payment, cfg config.Payment) (Driver, error)

// Registry maps gateway names to driver factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = f
}

// Build creates the driver registered under name.
func (r *Registry) Build(name string, s settings.Payment, cfg config.Payment) (Driver, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}

	return f(s, cfg)
}

// Names lists the registered gateways.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
