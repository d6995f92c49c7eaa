// Package affinity binds execution contexts to the OS thread that owns them.
package affinity

import (
	"runtime"
	"sync"
)

// Binding records the OS thread a context was assigned to.
// The zero value is unassigned.
type Binding struct {
	mu       sync.Mutex
	tid      int
	assigned bool
}

// Assign locks the calling goroutine to its OS thread and records that
// thread as the owner. It must be paired with Release on the same goroutine.
func (b *Binding) Assign() {
	runtime.LockOSThread()
	b.mu.Lock()
	b.tid = ThreadID()
	b.assigned = true
	b.mu.Unlock()
}

// Release forgets the owning thread and unlocks the calling goroutine.
func (b *Binding) Release() {
	b.mu.Lock()
	b.assigned = false
	b.tid = 0
	b.mu.Unlock()
	runtime.UnlockOSThread()
}

// Assigned reports whether an owning thread is recorded.
func (b *Binding) Assigned() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.assigned
}

// Current reports whether the caller runs on the owning thread.
// An unassigned binding never matches.
func (b *Binding) Current() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.assigned && b.tid == ThreadID()
}

// Thread returns the recorded owner thread id, or 0.
func (b *Binding) Thread() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tid
}
