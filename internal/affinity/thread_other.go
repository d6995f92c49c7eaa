//go:build !linux

package affinity

// Precise reports whether ThreadID distinguishes OS threads on this platform.
const Precise = false

// ThreadID returns 0; thread identity is not tracked on this platform, so
// every assigned binding matches every caller.
func ThreadID() int {
	return 0
}
