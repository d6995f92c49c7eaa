package compute

import (
	"fmt"
)

// MaxArrayRank is the highest rank a device array supports.
const MaxArrayRank = 3

// Array is a buffer whose device side is an opaque device array described
// by a channel format. It can be seeded from an image or a flat source;
// setting one drops the other.
type Array struct {
	Buffer

	image  Image
	array  Source
	format ChannelFormat
}

// NewArray returns a clear Array.
func NewArray() *Array {
	a := &Array{}
	a.setupBase(a)
	return a
}

// Init validates rank and sources, then initializes the buffer. On failure
// the Array is cleared.
func (a *Array) Init() error {
	if !a.IsClear() {
		return nil
	}
	if a.NumDimensions() > MaxArrayRank {
		err := fmt.Errorf("%w: %d > %d", ErrRankTooHigh, a.NumDimensions(), MaxArrayRank)
		a.logs().Fatal("Init: the maximum rank allowed is 3", "rank", a.NumDimensions())
		a.Clear()
		return err
	}

	byteSize := a.elementSize * product(a.dimensions)
	if a.image != nil {
		if err := checkImage(a.image, byteSize); err != nil {
			a.logs().Fatal("Init: image rejected", "image", sourceName(a.image), "error", err)
			a.Clear()
			return err
		}
	}
	if a.array != nil && a.array.SizeInBytes() != byteSize {
		err := fmt.Errorf("%w: array %q holds %d bytes, buffer needs %d",
			ErrSourceSize, sourceName(a.array), a.array.SizeInBytes(), byteSize)
		a.logs().Fatal("Init: array rejected", "array", sourceName(a.array), "error", err)
		a.Clear()
		return err
	}

	if err := a.Buffer.Init(); err != nil {
		return err
	}
	if !a.format.Valid() {
		a.format = ChannelFormatFor(a.elementSize)
	}
	return nil
}

// Clear drops sources and the channel format, then clears the buffer.
func (a *Array) Clear() error {
	a.image = nil
	a.array = nil
	a.format = NoChannelFormat
	return a.Buffer.Clear()
}

// SetImage makes img the Array's source and drops any flat source. Once the
// Array is initialized, images with mipmaps or the wrong size are rejected
// without changing anything.
func (a *Array) SetImage(img Image) error {
	if !a.IsClear() && img != nil {
		if err := checkImage(img, a.ByteSize()); err != nil {
			a.logs().Fatal("SetImage: image rejected", "image", sourceName(img), "error", err)
			return err
		}
	}
	a.image = img
	a.array = nil
	return nil
}

// Image returns the image source, if any.
func (a *Array) Image() Image { return a.image }

// SetArray makes src the Array's source and drops any image. Once the
// Array is initialized, a source of the wrong size is rejected.
func (a *Array) SetArray(src Source) error {
	if !a.IsClear() && src != nil && src.SizeInBytes() != a.ByteSize() {
		err := fmt.Errorf("%w: array %q holds %d bytes, buffer needs %d",
			ErrSourceSize, sourceName(src), src.SizeInBytes(), a.ByteSize())
		a.logs().Fatal("SetArray: array rejected", "array", sourceName(src), "error", err)
		return err
	}
	a.array = src
	a.image = nil
	return nil
}

// Array returns the flat source, if any.
func (a *Array) Array() Source { return a.array }

// SetChannelFormat sets the device element layout. Ignored unless clear.
func (a *Array) SetChannelFormat(f ChannelFormat) {
	if !a.IsClear() {
		return
	}
	a.format = f
}

// ChannelFormat returns the device element layout.
func (a *Array) ChannelFormat() ChannelFormat { return a.format }

// Map maps the host side and returns its memory. Device mappings are
// forwarded to MapArray and return no host memory; Unmapped unmaps.
func (a *Array) Map(c Context, m Mapping) ([]byte, error) {
	s, err := a.enter(c, "Map")
	if err != nil {
		return nil, err
	}
	switch {
	case m == Unmapped:
		a.unmapStream(s)
		return nil, nil
	case !m.Valid():
		return nil, a.usageError(s, "Map", fmt.Errorf("%w: %s", ErrInvalidMapping, m))
	case m.IsDevice():
		if err := a.mapStream(s, m); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := a.mapStream(s, m); err != nil {
		return nil, err
	}
	return s.host, nil
}

// MapArray maps the device side and returns the device array handle.
func (a *Array) MapArray(c Context, m Mapping) (DevicePtr, error) {
	s, err := a.enter(c, "MapArray")
	if err != nil {
		return 0, err
	}
	switch {
	case m == Unmapped:
		a.unmapStream(s)
		return 0, nil
	case !m.Valid():
		return 0, a.usageError(s, "MapArray", fmt.Errorf("%w: %s", ErrInvalidMapping, m))
	case m.IsHost():
		return 0, a.usageError(s, "MapArray", fmt.Errorf("%w: cannot map array to host, use Map", ErrWrongSide))
	}
	if err := a.mapStream(s, m); err != nil {
		return 0, err
	}
	return s.device, nil
}

// Unmap ends the context's current mapping.
func (a *Array) Unmap(c Context) error {
	s, err := a.enter(c, "Unmap")
	if err != nil {
		return err
	}
	a.unmapStream(s)
	return nil
}

// SetMemory fills count bytes from offset with value through a host target
// mapping; a negative count fills to the end. Device arrays cannot be
// filled in place, so device targets only map the array.
func (a *Array) SetMemory(c Context, value byte, m Mapping, offset, count int) error {
	switch {
	case m&MapHostTarget != 0:
		mem, err := a.Map(c, m)
		if err != nil {
			return err
		}
		if err := fill(mem, value, offset, count); err != nil {
			a.logs().Fatal("SetMemory: fill failed", "context", c.ID(), "error", err)
			_ = a.Unmap(c)
			return err
		}
		return nil
	case m&MapDeviceTarget != 0:
		if _, err := a.MapArray(c, m); err != nil {
			return err
		}
		a.logs().Info("SetMemory: filling device arrays is not supported", "context", c.ID())
		return nil
	}
	if err := a.Unmap(c); err != nil {
		return err
	}
	return fmt.Errorf("%w: SetMemory needs a target mapping, got %s", ErrInvalidMapping, m)
}

func (a *Array) newStream(Context) *Stream { return newStream("array") }

func (a *Array) source() Source {
	if a.image != nil {
		return a.image
	}
	if a.array != nil {
		return a.array
	}
	return nil
}

func (a *Array) alloc(s *Stream, side Side) error {
	if side == SideHost {
		return a.allocHostSide(s)
	}
	if !a.format.Valid() {
		return ErrNoChannelFormat
	}

	var (
		ptr       DevicePtr
		err       error
		primitive string
	)
	switch a.NumDimensions() {
	case 3:
		primitive = "AllocDevice3DArray"
		ptr, err = s.context.AllocDevice3DArray(a.Dimension(0), collapse(a.Dimension(1)), collapse(a.Dimension(2)), a.format)
	case 2:
		primitive = "AllocDevice2DArray"
		ptr, err = s.context.AllocDevice2DArray(a.Dimension(0), collapse(a.Dimension(1)), a.format)
	default:
		primitive = "AllocDeviceArray"
		ptr, err = s.context.AllocDeviceArray(a.Dimension(0), a.format)
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %w", primitive, ErrAllocation, err)
	}
	if ptr == 0 {
		return fmt.Errorf("%s returned no memory: %w", primitive, ErrAllocation)
	}
	s.device = ptr
	s.deviceAllocated = true
	if s.host != nil {
		s.syncDevice = true
	}
	return nil
}

func (a *Array) setup(s *Stream, side Side, src Source) error {
	data := src.Data()
	if data == nil {
		return fmt.Errorf("%w: %q", ErrNoSourceData, sourceName(src))
	}
	if side == SideHost {
		t := a.flatTransfer(HostToHost, HostAt(s.host), HostAt(data), a.ByteSize())
		return copyIn(s, "Memcpy", t)
	}
	// Sources are tightly packed, so anything below rank 3 goes in one flat copy.
	t := a.flatTransfer(HostToDevice, DeviceAt(s.device), HostAt(data), a.ByteSize())
	primitive := "MemcpyToArray"
	if a.NumDimensions() == 3 {
		t = a.shapedTransfer(HostToDevice, DeviceAt(s.device), HostAt(data))
		primitive = "Memcpy3D"
	}
	return copyIn(s, primitive, t)
}

func (a *Array) sync(s *Stream, side Side) error {
	var t Transfer
	if side == SideDevice {
		t = a.shapedTransfer(HostToDevice, DeviceAt(s.device), HostAt(s.host))
	} else {
		t = a.shapedTransfer(DeviceToHost, HostAt(s.host), DeviceAt(s.device))
	}
	return copyIn(s, arrayPrimitive(t), t)
}

func (a *Array) usageError(s *Stream, op string, err error) error {
	a.logs().Fatal(op+": "+err.Error(), "context", s.context.ID())
	return err
}

func checkImage(img Image, byteSize int) error {
	if img.MipmapLevels() > 1 {
		return fmt.Errorf("%w: image %q has %d levels", ErrMipmapsUnsupported, sourceName(img), img.MipmapLevels())
	}
	if img.SizeInBytes() != byteSize {
		return fmt.Errorf("%w: image %q holds %d bytes, buffer needs %d",
			ErrSourceSize, sourceName(img), img.SizeInBytes(), byteSize)
	}
	return nil
}

// collapse maps extents of one to zero, the way device array allocators
// expect unused dimensions.
func collapse(n int) int {
	if n <= 1 {
		return 0
	}
	return n
}

func arrayPrimitive(t Transfer) string {
	dir := "ToArray"
	if t.Kind == DeviceToHost {
		dir = "FromArray"
	}
	switch t.Rank {
	case 2:
		return "Memcpy2D" + dir
	case 3:
		return "Memcpy3D"
	default:
		return "Memcpy" + dir
	}
}
