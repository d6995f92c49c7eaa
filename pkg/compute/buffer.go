package compute

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/samcharles93/duplex/internal/logger"
)

// Logger is the diagnostics sink buffers report to.
type Logger = logger.Logger

// NewLogger wraps a slog handler as a Logger.
func NewLogger(h slog.Handler) Logger { return logger.New(h) }

// variant is what a concrete buffer kind plugs into the shared Buffer.
type variant interface {
	newStream(c Context) *Stream
	source() Source
	alloc(s *Stream, side Side) error
	setup(s *Stream, side Side, src Source) error
	sync(s *Stream, side Side) error
}

// Buffer holds the configuration and per-context Streams common to every
// buffer kind. Configuration is mutable only while the buffer is clear.
type Buffer struct {
	resource

	name    string
	log     Logger
	variant variant

	dimensions  []int
	numElements int
	elementSize int
	allocHint   AllocHint

	hostCallback   SubloadCallback
	deviceCallback DeviceSubloadCallback

	mu      sync.Mutex
	streams []*Stream

	// constructed counts Streams ever created; tests use it to check
	// at-most-once creation.
	constructed atomic.Int64
}

func (b *Buffer) setupBase(v variant) {
	b.variant = v
	b.name = "buffer-" + uuid.NewString()[:8]
	b.log = logger.Default()
}

// Name identifies the buffer in diagnostics.
func (b *Buffer) Name() string { return b.name }

// SetName renames the buffer. An empty name is ignored.
func (b *Buffer) SetName(name string) {
	if name != "" {
		b.name = name
	}
}

// SetLogger replaces the diagnostics sink. Nil restores the default.
func (b *Buffer) SetLogger(l Logger) {
	if l == nil {
		l = logger.Default()
	}
	b.log = l
}

func (b *Buffer) logs() Logger { return b.log.With("buffer", b.name) }

// SetDimension sets the size of dimension i, growing the dimension list
// with zeros as needed. Ignored unless the buffer is clear.
func (b *Buffer) SetDimension(i, size int) {
	if !b.IsClear() || i < 0 || size < 0 {
		return
	}
	if len(b.dimensions) <= i {
		grown := make([]int, i+1)
		copy(grown, b.dimensions)
		b.dimensions = grown
	}
	b.dimensions[i] = size
	b.numElements = product(b.dimensions)
}

// Dimension returns the size of dimension i, or 0 when i is out of range.
func (b *Buffer) Dimension(i int) int {
	if i < 0 || i >= len(b.dimensions) {
		return 0
	}
	return b.dimensions[i]
}

// NumDimensions is the buffer's rank.
func (b *Buffer) NumDimensions() int { return len(b.dimensions) }

// NumElements is the product of all dimensions.
func (b *Buffer) NumElements() int { return b.numElements }

// SetElementSize sets the size of one element in bytes. Ignored unless the
// buffer is clear.
func (b *Buffer) SetElementSize(size int) {
	if !b.IsClear() || size < 0 {
		return
	}
	b.elementSize = size
}

// ElementSize is the size of one element in bytes.
func (b *Buffer) ElementSize() int { return b.elementSize }

// ByteSize is the size of one side's copy of the data.
func (b *Buffer) ByteSize() int { return b.elementSize * b.numElements }

// SetAllocHint ORs hint into the buffer's allocation hint. Ignored unless
// the buffer is clear.
func (b *Buffer) SetAllocHint(hint AllocHint) {
	if !b.IsClear() {
		return
	}
	b.allocHint |= hint
}

// AllocHint returns the accumulated allocation hint.
func (b *Buffer) AllocHint() AllocHint { return b.allocHint }

// SetSubloadCallback installs the host-side callback.
func (b *Buffer) SetSubloadCallback(cb SubloadCallback) { b.hostCallback = cb }

// SubloadCallback returns the host-side callback.
func (b *Buffer) SubloadCallback() SubloadCallback { return b.hostCallback }

// SetDeviceSubloadCallback installs the device-side callback.
func (b *Buffer) SetDeviceSubloadCallback(cb DeviceSubloadCallback) { b.deviceCallback = cb }

// DeviceSubloadCallback returns the device-side callback.
func (b *Buffer) DeviceSubloadCallback() DeviceSubloadCallback { return b.deviceCallback }

// Init validates the configuration and leaves the clear state. Calling it
// again after success is a no-op.
func (b *Buffer) Init() error {
	if !b.IsClear() {
		return nil
	}
	if len(b.dimensions) == 0 {
		return b.configError("Init", ErrNoDimensions)
	}
	if b.elementSize == 0 {
		return b.configError("Init", ErrNoElementSize)
	}
	for i, d := range b.dimensions {
		if d == 0 {
			return b.configError("Init", fmt.Errorf("%w: dimension %d", ErrZeroDimension, i))
		}
	}
	b.numElements = product(b.dimensions)
	b.init()
	return nil
}

// Mapping returns the context's current mapping without creating a Stream.
func (b *Buffer) Mapping(c Context) Mapping {
	if b.IsClear() || c == nil {
		return Unmapped
	}
	b.mu.Lock()
	s := b.streamLocked(c.ID())
	b.mu.Unlock()
	if s == nil {
		b.logs().Fatal("could not receive stream", "context", c.ID())
		return Unmapped
	}
	return s.mapping
}

// Contexts lists the ids of contexts holding a Stream, ascending.
func (b *Buffer) Contexts() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.contextIDs()
}

// NumStreams counts live Streams.
func (b *Buffer) NumStreams() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.streams {
		if s != nil {
			n++
		}
	}
	return n
}

// Streams snapshots every live Stream in context order.
func (b *Buffer) Streams() []StreamState {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []StreamState
	for _, s := range b.streams {
		if s != nil {
			out = append(out, s.state())
		}
	}
	return out
}

// ClearContext frees the Stream of one context. Other contexts are untouched.
func (b *Buffer) ClearContext(c Context) error {
	if c == nil {
		return ErrNilContext
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id := c.ID()
	var err error
	if s := b.streamLocked(id); s != nil {
		err = s.release()
		b.streams[id] = nil
	}
	b.clearContext(id)
	if err != nil {
		b.logs().Error("releasing stream failed", "context", id, "error", err)
	}
	return err
}

// Clear frees every Stream and resets the configuration.
func (b *Buffer) Clear() error {
	b.mu.Lock()
	var errs []error
	for id, s := range b.streams {
		if s == nil {
			continue
		}
		if err := s.release(); err != nil {
			b.logs().Error("releasing stream failed", "context", id, "error", err)
			errs = append(errs, err)
		}
	}
	b.streams = nil
	b.resource.clear()
	b.mu.Unlock()

	b.dimensions = nil
	b.numElements = 0
	b.elementSize = 0
	b.allocHint = NoAllocHint
	b.hostCallback = nil
	b.deviceCallback = nil
	return errors.Join(errs...)
}

func (b *Buffer) streamLocked(id int) *Stream {
	if id < 0 || id >= len(b.streams) {
		return nil
	}
	return b.streams[id]
}

// lookupStream returns the context's Stream, creating it on first use.
// The lock covers the check-and-create only.
func (b *Buffer) lookupStream(c Context) (*Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s := b.streamLocked(c.ID()); s != nil {
		return s, nil
	}
	return b.initContextLocked(c)
}

func (b *Buffer) initContextLocked(c Context) (*Stream, error) {
	id := c.ID()
	if id < 0 {
		return nil, fmt.Errorf("%w: negative context id %d", ErrNoStream, id)
	}
	if len(b.streams) <= id {
		grown := make([]*Stream, id+1)
		copy(grown, b.streams)
		b.streams = grown
	}

	s := b.variant.newStream(c)
	if s == nil {
		return nil, ErrNoStream
	}
	s.context = c
	s.allocHint = b.allocHint
	s.mapping = Unmapped
	b.streams[id] = s
	b.constructed.Add(1)

	b.initContext(id)
	return s, nil
}

// enter runs the checks shared by every context-bound operation and returns
// the context's Stream.
func (b *Buffer) enter(c Context, op string) (*Stream, error) {
	if c == nil {
		b.logs().Fatal(op+": nil context", "op", op)
		return nil, ErrNilContext
	}
	if b.IsClear() {
		b.logs().Fatal(op+": buffer is not initialized", "context", c.ID())
		return nil, ErrClear
	}
	if !c.CurrentThreadIsAssigned() {
		b.logs().Fatal(op+": calling thread differs from the context's thread", "context", c.ID())
		return nil, ErrWrongThread
	}
	s, err := b.lookupStream(c)
	if err != nil {
		b.logs().Fatal(op+": could not receive stream", "context", c.ID(), "error", err)
		return nil, err
	}
	return s, nil
}

func (b *Buffer) configError(op string, err error) error {
	b.logs().Fatal(op+": "+err.Error(), "op", op)
	return err
}

// streamError logs a failure inside the state machine and wraps it with the
// buffer and context it happened in.
func (b *Buffer) streamError(s *Stream, op string, err error) error {
	b.logs().Fatal(op+" failed", "context", s.context.ID(), "op", op, "error", err)
	return fmt.Errorf("%s: %s (context %d): %w", b.name, op, s.context.ID(), err)
}

func product(dims []int) int {
	if len(dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
