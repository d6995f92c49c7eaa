package compute

import (
	"fmt"
	"slices"
	"sync"
)

// Registry tracks live contexts by id and, optionally, a default context.
// Nothing in this package consults a Registry; callers that want a
// process-wide default create one at startup, bind a context, and Close it
// at shutdown.
type Registry struct {
	mu       sync.RWMutex
	contexts map[int]Context
	current  int
	bound    bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[int]Context)}
}

// Register adds c. Registering a second context with the same id fails.
func (r *Registry) Register(c Context) error {
	if c == nil {
		return ErrNilContext
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.contexts[c.ID()]; ok && existing != c {
		return fmt.Errorf("context %d already registered", c.ID())
	}
	r.contexts[c.ID()] = c
	return nil
}

// Unregister removes the context with the given id and unbinds it if it
// was the default.
func (r *Registry) Unregister(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, id)
	if r.bound && r.current == id {
		r.bound = false
	}
}

// Lookup returns the context with the given id.
func (r *Registry) Lookup(id int) (Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contexts[id]
	return c, ok
}

// IDs lists registered ids, ascending.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.contexts))
	for id := range r.contexts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// BindContext registers c if needed and makes it the default context.
func (r *Registry) BindContext(c Context) error {
	if err := r.Register(c); err != nil {
		return err
	}
	r.mu.Lock()
	r.current = c.ID()
	r.bound = true
	r.mu.Unlock()
	return nil
}

// UnbindContext clears the default context; the context stays registered.
func (r *Registry) UnbindContext() {
	r.mu.Lock()
	r.bound = false
	r.mu.Unlock()
}

// CurrentContext returns the default context.
func (r *Registry) CurrentContext() (Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.bound {
		return nil, false
	}
	c, ok := r.contexts[r.current]
	return c, ok
}

// Close unbinds and forgets every context.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts = make(map[int]Context)
	r.bound = false
}
