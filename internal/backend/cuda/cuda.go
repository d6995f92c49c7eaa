//go:build cuda

// Package cuda is a compute.Context backed by the CUDA runtime.
package cuda

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/samcharles93/duplex/internal/affinity"
	"github.com/samcharles93/duplex/internal/backend/cuda/native"
	"github.com/samcharles93/duplex/internal/logger"
	"github.com/samcharles93/duplex/pkg/compute"
)

type allocation struct {
	array     bool
	buf       native.DeviceBuffer
	arr       native.Array
	width     int // elements
	height    int
	depth     int
	elemBytes int
	size      int
}

// Context drives one CUDA device. Every call must come from the thread
// that called Assign.
type Context struct {
	affinity.Binding

	id     int
	device int
	log    logger.Logger

	mu     sync.Mutex
	allocs map[compute.DevicePtr]*allocation
	pinned map[*byte]native.HostBuffer
}

// Detect reports whether a CUDA device is usable.
func Detect() error {
	count, err := native.DeviceCount()
	if err != nil {
		return fmt.Errorf("cuda device query failed: %w", err)
	}
	if count < 1 {
		return fmt.Errorf("no cuda devices detected")
	}
	return nil
}

// New returns a context for id. Contexts are spread over the visible devices.
func New(id int) (*Context, error) {
	count, err := native.DeviceCount()
	if err != nil {
		return nil, fmt.Errorf("cuda device query failed: %w", err)
	}
	if count < 1 {
		return nil, fmt.Errorf("no cuda devices detected")
	}
	return &Context{
		id:     id,
		device: id % count,
		log:    logger.Default().With("backend", "cuda", "context", id),
		allocs: make(map[compute.DevicePtr]*allocation),
		pinned: make(map[*byte]native.HostBuffer),
	}, nil
}

func (c *Context) Name() string { return "cuda" }

func (c *Context) ID() int { return c.id }

// Assign binds the calling thread and makes the context's device current on it.
func (c *Context) Assign() {
	c.Binding.Assign()
	if err := native.SetDevice(c.device); err != nil {
		c.log.Error("cudaSetDevice failed", "device", c.device, "error", err)
	}
}

func (c *Context) CurrentThreadIsAssigned() bool { return c.Current() }

func (c *Context) AllocHost(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("host alloc size must be > 0")
	}
	return make([]byte, size), nil
}

func (c *Context) AllocPinnedHost(size int) ([]byte, error) {
	buf, err := native.AllocHostPinned(int64(size))
	if err != nil {
		return nil, err
	}
	mem := buf.Bytes(size)
	c.mu.Lock()
	c.pinned[unsafe.SliceData(mem)] = buf
	c.mu.Unlock()
	return mem, nil
}

func (c *Context) AllocDeviceLinear(size int) (compute.DevicePtr, error) {
	buf, err := native.AllocDevice(int64(size))
	if err != nil {
		return 0, err
	}
	ptr := compute.DevicePtr(buf.Addr())
	c.track(ptr, &allocation{buf: buf, size: size})
	return ptr, nil
}

func (c *Context) AllocDeviceArray(width int, f compute.ChannelFormat) (compute.DevicePtr, error) {
	return c.allocArray(f, width, 0, 0)
}

func (c *Context) AllocDevice2DArray(width, height int, f compute.ChannelFormat) (compute.DevicePtr, error) {
	return c.allocArray(f, width, height, 0)
}

func (c *Context) AllocDevice3DArray(width, height, depth int, f compute.ChannelFormat) (compute.DevicePtr, error) {
	return c.allocArray(f, width, height, depth)
}

func (c *Context) allocArray(f compute.ChannelFormat, width, height, depth int) (compute.DevicePtr, error) {
	kind, err := channelKind(f)
	if err != nil {
		return 0, err
	}
	var arr native.Array
	if depth > 0 {
		arr, err = native.Alloc3DArray(f.X, f.Y, f.Z, f.W, kind, width, max(height, 1), depth)
	} else {
		arr, err = native.AllocArray(f.X, f.Y, f.Z, f.W, kind, width, height)
	}
	if err != nil {
		return 0, err
	}
	a := &allocation{
		array:     true,
		arr:       arr,
		width:     width,
		height:    max(height, 1),
		depth:     max(depth, 1),
		elemBytes: f.Bytes(),
	}
	a.size = a.width * a.height * a.depth * a.elemBytes
	ptr := compute.DevicePtr(arr.Addr())
	c.track(ptr, a)
	return ptr, nil
}

func (c *Context) track(ptr compute.DevicePtr, a *allocation) {
	c.mu.Lock()
	c.allocs[ptr] = a
	c.mu.Unlock()
}

func (c *Context) lookup(ptr compute.DevicePtr) (*allocation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.allocs[ptr]
	if !ok {
		return nil, unknownPointer(uintptr(ptr))
	}
	return a, nil
}

func (c *Context) FreeHost(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	c.mu.Lock()
	buf, ok := c.pinned[unsafe.SliceData(mem)]
	delete(c.pinned, unsafe.SliceData(mem))
	c.mu.Unlock()
	if !ok {
		// Pageable memory belongs to the Go heap.
		return nil
	}
	return buf.Free()
}

func (c *Context) FreeDevice(ptr compute.DevicePtr) error {
	if ptr == 0 {
		return nil
	}
	c.mu.Lock()
	a, ok := c.allocs[ptr]
	delete(c.allocs, ptr)
	c.mu.Unlock()
	if !ok {
		return unknownPointer(uintptr(ptr))
	}
	if a.array {
		return a.arr.Free()
	}
	return a.buf.Free()
}

// Close frees everything still allocated through the context.
func (c *Context) Close() error {
	c.mu.Lock()
	allocs, pinned := c.allocs, c.pinned
	c.allocs = make(map[compute.DevicePtr]*allocation)
	c.pinned = make(map[*byte]native.HostBuffer)
	c.mu.Unlock()

	var errs []error
	for _, a := range allocs {
		if a.array {
			errs = append(errs, a.arr.Free())
		} else {
			errs = append(errs, a.buf.Free())
		}
	}
	for _, buf := range pinned {
		errs = append(errs, buf.Free())
	}
	return errors.Join(errs...)
}

func channelKind(f compute.ChannelFormat) (native.ChannelKind, error) {
	switch f.Kind {
	case compute.ChannelSigned:
		return native.ChannelSigned, nil
	case compute.ChannelUnsigned:
		return native.ChannelUnsigned, nil
	case compute.ChannelFloat:
		return native.ChannelFloat, nil
	default:
		return 0, fmt.Errorf("cuda: invalid channel format %s", f)
	}
}

var _ compute.Context = (*Context)(nil)
