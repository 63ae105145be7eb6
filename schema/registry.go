package schema

import (
	"fmt"
	"slices"
	"sync"
)

// Resolver produces a schema on first use. It stands in for a host system that
// loads descriptors asynchronously or from another asset.
type Resolver func() (Schema, error)

// Registry resolves schemas by name, running deferred resolvers the first time
// a schema must be usable. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	ready    map[string]Schema
	deferred map[string]Resolver
}

// NewRegistry creates a registry holding the given ready schemas.
func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{
		ready:    make(map[string]Schema),
		deferred: make(map[string]Resolver),
	}
	for _, s := range schemas {
		r.Register(s)
	}
	return r
}

// Register adds a ready schema, replacing any previous one of the same name.
func (r *Registry) Register(s Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.deferred, s.Name())
	r.ready[s.Name()] = s
}

// RegisterDeferred adds a schema that is resolved on first Ensure.
func (r *Registry) RegisterDeferred(name string, fn Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ready, name)
	r.deferred[name] = fn
}

// Ensure returns a usable schema, resolving it if it was deferred.
func (r *Registry) Ensure(name string) (Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.ready[name]; ok {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: %s was torn down", ErrNotRegistered, name)
		}
		return s, nil
	}
	fn, ok := r.deferred[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	s, err := fn()
	if err != nil {
		return nil, fmt.Errorf("resolve schema %s: %w", name, err)
	}
	if s.Name() != name {
		return nil, fmt.Errorf("%w: resolver for %s produced %s", ErrInvalidLayout, name, s.Name())
	}
	delete(r.deferred, name)
	r.ready[name] = s
	return s, nil
}

// Names lists every registered schema name, ready or deferred, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.ready)+len(r.deferred))
	for n := range r.ready {
		out = append(out, n)
	}
	for n := range r.deferred {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
