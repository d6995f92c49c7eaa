package compute

import (
	"slices"
	"sync/atomic"
)

// resource is the init/clear lifecycle a buffer wraps, plus the set of
// contexts it has been registered with. contexts is guarded by the owning
// buffer's mutex.
type resource struct {
	initialized atomic.Bool
	contexts    map[int]struct{}
}

// IsClear reports whether the resource is uninitialized.
func (r *resource) IsClear() bool { return !r.initialized.Load() }

func (r *resource) init() { r.initialized.Store(true) }

func (r *resource) clear() {
	r.initialized.Store(false)
	r.contexts = nil
}

func (r *resource) initContext(id int) {
	if r.contexts == nil {
		r.contexts = make(map[int]struct{})
	}
	r.contexts[id] = struct{}{}
}

func (r *resource) clearContext(id int) {
	delete(r.contexts, id)
}

func (r *resource) contextIDs() []int {
	ids := make([]int, 0, len(r.contexts))
	for id := range r.contexts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
