package oracle

import (
	"context"
	"fmt"
	"sort"
)

// Backend is a named Completer implementation (openai, textgen, ...).
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Registry keeps a mapping from backend names to their implementations.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: map[string]Backend{}}
}

// Register adds or replaces a backend implementation.
func (r *Registry) Register(backend Backend) {
	if r.backends == nil {
		r.backends = map[string]Backend{}
	}
	r.backends[backend.Name()] = backend
}

// Resolve returns a backend by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Backend, error) {
	if backend, ok := r.backends[name]; ok {
		return backend, nil
	}
	return nil, fmt.Errorf("oracle backend %q is not registered (have %v)", name, r.Names())
}

// Names lists registered backends in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
