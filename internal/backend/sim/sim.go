// Package sim is an in-process accelerator. Host memory is ordinary Go
// slices and device memory lives in a separate arena addressed by
// compute.DevicePtr, so every transfer the engine issues is observable.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/samcharles93/duplex/internal/affinity"
	"github.com/samcharles93/duplex/pkg/compute"
)

// Op names a primitive that FailNext can make fail.
type Op string

const (
	OpAllocHost   Op = "alloc-host"
	OpAllocPinned Op = "alloc-pinned"
	OpAllocDevice Op = "alloc-device"
	OpMemcpy      Op = "memcpy"
)

// ErrInjected is returned by a primitive armed with FailNext.
var ErrInjected = errors.New("sim: injected failure")

var errClosed = errors.New("sim: context is closed")

// deviceAlign keeps device addresses apart the way real allocators do.
const deviceAlign = 256

type region struct {
	data   []byte
	kind   string
	format compute.ChannelFormat
}

// Context is a simulated compute.Context. The zero value is not usable; use New.
type Context struct {
	affinity.Binding

	id int

	mu     sync.Mutex
	next   compute.DevicePtr
	device map[compute.DevicePtr]*region
	host   map[*byte]int
	stats  Stats
	fail   map[Op]error
	closed bool
}

// New returns a context with the given id. Call Assign on the goroutine that
// will drive it.
func New(id int) *Context {
	return &Context{
		id:     id,
		next:   deviceAlign,
		device: make(map[compute.DevicePtr]*region),
		host:   make(map[*byte]int),
		fail:   make(map[Op]error),
	}
}

func (c *Context) Name() string { return "sim" }

func (c *Context) ID() int { return c.id }

func (c *Context) CurrentThreadIsAssigned() bool { return c.Current() }

// FailNext makes the next call of op fail with err, or ErrInjected when err
// is nil.
func (c *Context) FailNext(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	c.mu.Lock()
	c.fail[op] = err
	c.mu.Unlock()
}

// injected consumes an armed failure. Callers hold c.mu.
func (c *Context) injected(op Op) error {
	if c.closed {
		return errClosed
	}
	if err, ok := c.fail[op]; ok {
		delete(c.fail, op)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Context) AllocHost(size int) ([]byte, error) {
	return c.allocHost(OpAllocHost, size)
}

func (c *Context) AllocPinnedHost(size int) ([]byte, error) {
	return c.allocHost(OpAllocPinned, size)
}

func (c *Context) allocHost(op Op, size int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected(op); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("host alloc size must be > 0")
	}
	mem := make([]byte, size)
	c.host[unsafe.SliceData(mem)] = size
	if op == OpAllocPinned {
		c.stats.PinnedAllocs++
	} else {
		c.stats.HostAllocs++
	}
	return mem, nil
}

func (c *Context) AllocDeviceLinear(size int) (compute.DevicePtr, error) {
	return c.allocDevice("linear", size, compute.NoChannelFormat)
}

func (c *Context) AllocDeviceArray(width int, f compute.ChannelFormat) (compute.DevicePtr, error) {
	return c.allocArray("array1d", f, width)
}

func (c *Context) AllocDevice2DArray(width, height int, f compute.ChannelFormat) (compute.DevicePtr, error) {
	return c.allocArray("array2d", f, width, height)
}

func (c *Context) AllocDevice3DArray(width, height, depth int, f compute.ChannelFormat) (compute.DevicePtr, error) {
	return c.allocArray("array3d", f, width, height, depth)
}

// allocArray sizes an array the way array allocators do: extents of zero
// stand for one.
func (c *Context) allocArray(kind string, f compute.ChannelFormat, extents ...int) (compute.DevicePtr, error) {
	if !f.Valid() {
		return 0, fmt.Errorf("%s: invalid channel format", kind)
	}
	size := f.Bytes()
	for _, e := range extents {
		if e < 0 {
			return 0, fmt.Errorf("%s: negative extent %d", kind, e)
		}
		size *= max(e, 1)
	}
	return c.allocDevice(kind, size, f)
}

func (c *Context) allocDevice(kind string, size int, f compute.ChannelFormat) (compute.DevicePtr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected(OpAllocDevice); err != nil {
		return 0, err
	}
	if size <= 0 {
		return 0, fmt.Errorf("device alloc size must be > 0")
	}
	ptr := c.next
	c.next += compute.DevicePtr((size + deviceAlign - 1) / deviceAlign * deviceAlign)
	c.device[ptr] = &region{data: make([]byte, size), kind: kind, format: f}
	c.stats.DeviceAllocs++
	return ptr, nil
}

func (c *Context) FreeHost(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := unsafe.SliceData(mem)
	if _, ok := c.host[key]; !ok {
		return fmt.Errorf("sim: free of unknown host memory")
	}
	delete(c.host, key)
	c.stats.HostFrees++
	return nil
}

func (c *Context) FreeDevice(ptr compute.DevicePtr) error {
	if ptr == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.device[ptr]; !ok {
		return fmt.Errorf("sim: free of unknown device pointer %#x", uintptr(ptr))
	}
	delete(c.device, ptr)
	c.stats.DeviceFrees++
	return nil
}

// DeviceBytes returns a copy of the device memory at ptr.
func (c *Context) DeviceBytes(ptr compute.DevicePtr) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.device[ptr]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), r.data...), true
}

// DeviceKind reports what primitive allocated ptr.
func (c *Context) DeviceKind(ptr compute.DevicePtr) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.device[ptr]; ok {
		return r.kind
	}
	return ""
}

// Live counts outstanding host and device allocations.
func (c *Context) Live() (host, device int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.host), len(c.device)
}

// Stats returns a snapshot of the counters.
func (c *Context) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.clone()
}

// ResetStats zeroes the counters.
func (c *Context) ResetStats() {
	c.mu.Lock()
	c.stats = Stats{}
	c.mu.Unlock()
}

// Close drops all memory. Later calls fail.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	clear(c.device)
	clear(c.host)
	return nil
}

var _ compute.Context = (*Context)(nil)
