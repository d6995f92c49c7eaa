package compute_test

import (
	"testing"

	"github.com/samcharles93/duplex/internal/backend/sim"
	"github.com/samcharles93/duplex/internal/logger"
	"github.com/samcharles93/duplex/pkg/compute"
)

// newContext returns a sim context bound to the test goroutine's thread.
func newContext(t *testing.T, id int) *sim.Context {
	t.Helper()
	c := sim.New(id)
	c.Assign()
	t.Cleanup(func() {
		c.Release()
		_ = c.Close()
	})
	return c
}

func newArray(t *testing.T, elementSize int, dims ...int) (*compute.Array, *logger.Capture) {
	t.Helper()
	a := compute.NewArray()
	log := logger.NewCapture()
	a.SetLogger(log)
	for i, d := range dims {
		a.SetDimension(i, d)
	}
	a.SetElementSize(elementSize)
	return a, log
}

func mustInit(t *testing.T, b interface{ Init() error }) {
	t.Helper()
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
}

func filled(n int, v byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = v
	}
	return out
}
