package compute

import "fmt"

// Linear is a buffer whose device side is plain linear device memory. It
// has no rank limit and moves data with flat copies only.
type Linear struct {
	Buffer

	src Source
}

// NewLinear returns a clear Linear buffer.
func NewLinear() *Linear {
	l := &Linear{}
	l.setupBase(l)
	return l
}

// Init validates the source size, then initializes the buffer. On failure
// the buffer is cleared.
func (l *Linear) Init() error {
	if !l.IsClear() {
		return nil
	}
	if l.src != nil {
		if want := l.elementSize * product(l.dimensions); l.src.SizeInBytes() != want {
			err := fmt.Errorf("%w: source %q holds %d bytes, buffer needs %d",
				ErrSourceSize, sourceName(l.src), l.src.SizeInBytes(), want)
			l.logs().Fatal("Init: source rejected", "source", sourceName(l.src), "error", err)
			_ = l.Clear()
			return err
		}
	}
	return l.Buffer.Init()
}

// Clear drops the source and clears the buffer.
func (l *Linear) Clear() error {
	l.src = nil
	return l.Buffer.Clear()
}

// SetSource makes src the buffer's source. Once initialized, a source of
// the wrong size is rejected.
func (l *Linear) SetSource(src Source) error {
	if !l.IsClear() && src != nil && src.SizeInBytes() != l.ByteSize() {
		err := fmt.Errorf("%w: source %q holds %d bytes, buffer needs %d",
			ErrSourceSize, sourceName(src), src.SizeInBytes(), l.ByteSize())
		l.logs().Fatal("SetSource: source rejected", "source", sourceName(src), "error", err)
		return err
	}
	l.src = src
	return nil
}

// Source returns the buffer's source, if any.
func (l *Linear) Source() Source { return l.src }

// Map maps the host side and returns its memory. Device mappings are
// forwarded to MapDevice and return no host memory.
func (l *Linear) Map(c Context, m Mapping) ([]byte, error) {
	s, err := l.enter(c, "Map")
	if err != nil {
		return nil, err
	}
	switch {
	case m == Unmapped:
		l.unmapStream(s)
		return nil, nil
	case !m.Valid():
		l.logs().Fatal("Map: invalid mapping", "context", c.ID(), "mapping", m.String())
		return nil, fmt.Errorf("%w: %s", ErrInvalidMapping, m)
	}
	if err := l.mapStream(s, m); err != nil {
		return nil, err
	}
	if m.IsDevice() {
		return nil, nil
	}
	return s.host, nil
}

// MapDevice maps the device side and returns the device address.
func (l *Linear) MapDevice(c Context, m Mapping) (DevicePtr, error) {
	s, err := l.enter(c, "MapDevice")
	if err != nil {
		return 0, err
	}
	switch {
	case m == Unmapped:
		l.unmapStream(s)
		return 0, nil
	case !m.Valid() || m.IsHost():
		l.logs().Fatal("MapDevice: wrong mapping, use one of DEVICE_SOURCE, DEVICE_TARGET, DEVICE",
			"context", c.ID(), "mapping", m.String())
		return 0, fmt.Errorf("%w: %s", ErrWrongSide, m)
	}
	if err := l.mapStream(s, m); err != nil {
		return 0, err
	}
	return s.device, nil
}

// Unmap ends the context's current mapping.
func (l *Linear) Unmap(c Context) error {
	s, err := l.enter(c, "Unmap")
	if err != nil {
		return err
	}
	l.unmapStream(s)
	return nil
}

// SetMemory fills count bytes from offset with value on the side m targets;
// a negative count fills to the end. Device fills go through a host staging
// slice.
func (l *Linear) SetMemory(c Context, value byte, m Mapping, offset, count int) error {
	switch {
	case m&MapHostTarget != 0:
		mem, err := l.Map(c, m)
		if err != nil {
			return err
		}
		if err := fill(mem, value, offset, count); err != nil {
			l.logs().Fatal("SetMemory: fill failed", "context", c.ID(), "error", err)
			_ = l.Unmap(c)
			return err
		}
		return nil
	case m&MapDeviceTarget != 0:
		ptr, err := l.MapDevice(c, m)
		if err != nil {
			return err
		}
		if count < 0 {
			count = l.ByteSize() - offset
		}
		if offset < 0 || count < 0 || offset+count > l.ByteSize() {
			err := fmt.Errorf("%w: offset %d count %d size %d", ErrOutOfRange, offset, count, l.ByteSize())
			l.logs().Fatal("SetMemory: fill failed", "context", c.ID(), "error", err)
			_ = l.Unmap(c)
			return err
		}
		staging := make([]byte, count)
		_ = fill(staging, value, 0, -1)
		t := l.flatTransfer(HostToDevice, Location{Device: ptr, Offset: offset}, HostAt(staging), count)
		if err := c.Memcpy(t); err != nil {
			l.logs().Fatal("SetMemory: Memcpy failed", "context", c.ID(), "error", err)
			return fmt.Errorf("Memcpy (%s): %w: %w", t, ErrTransfer, err)
		}
		return nil
	}
	if err := l.Unmap(c); err != nil {
		return err
	}
	return fmt.Errorf("%w: SetMemory needs a target mapping, got %s", ErrInvalidMapping, m)
}

func (l *Linear) newStream(Context) *Stream { return newStream("linear") }

func (l *Linear) source() Source { return l.src }

func (l *Linear) alloc(s *Stream, side Side) error {
	if side == SideHost {
		return l.allocHostSide(s)
	}
	ptr, err := s.context.AllocDeviceLinear(l.ByteSize())
	if err != nil {
		return fmt.Errorf("AllocDeviceLinear(%d): %w: %w", l.ByteSize(), ErrAllocation, err)
	}
	if ptr == 0 {
		return fmt.Errorf("AllocDeviceLinear returned no memory: %w", ErrAllocation)
	}
	s.device = ptr
	s.deviceAllocated = true
	if s.host != nil {
		s.syncDevice = true
	}
	return nil
}

func (l *Linear) setup(s *Stream, side Side, src Source) error {
	data := src.Data()
	if data == nil {
		return fmt.Errorf("%w: %q", ErrNoSourceData, sourceName(src))
	}
	if side == SideHost {
		return copyIn(s, "Memcpy", l.flatTransfer(HostToHost, HostAt(s.host), HostAt(data), l.ByteSize()))
	}
	return copyIn(s, "Memcpy", l.flatTransfer(HostToDevice, DeviceAt(s.device), HostAt(data), l.ByteSize()))
}

func (l *Linear) sync(s *Stream, side Side) error {
	if side == SideDevice {
		return copyIn(s, "Memcpy", l.flatTransfer(HostToDevice, DeviceAt(s.device), HostAt(s.host), l.ByteSize()))
	}
	return copyIn(s, "Memcpy", l.flatTransfer(DeviceToHost, HostAt(s.host), DeviceAt(s.device), l.ByteSize()))
}
