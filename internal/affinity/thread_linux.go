//go:build linux

package affinity

import "golang.org/x/sys/unix"

// Precise reports whether ThreadID distinguishes OS threads on this platform.
const Precise = true

// ThreadID returns the kernel id of the calling OS thread.
func ThreadID() int {
	return unix.Gettid()
}
