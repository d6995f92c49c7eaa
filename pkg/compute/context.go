package compute

import "fmt"

// DevicePtr is an opaque handle to device memory. Zero means no memory.
type DevicePtr uintptr

// Context is an execution domain: a device, or a logical partition of one.
// Implementations own the allocation and copy primitives; the engine only
// calls them.
type Context interface {
	// ID is a small non-negative integer, stable for the context's lifetime.
	ID() int
	// CurrentThreadIsAssigned reports whether the caller runs on the thread
	// that owns this context.
	CurrentThreadIsAssigned() bool

	AllocHost(size int) ([]byte, error)
	// AllocPinnedHost returns page-locked host memory the device can reach directly.
	AllocPinnedHost(size int) ([]byte, error)
	AllocDeviceLinear(size int) (DevicePtr, error)
	AllocDeviceArray(width int, format ChannelFormat) (DevicePtr, error)
	AllocDevice2DArray(width, height int, format ChannelFormat) (DevicePtr, error)
	AllocDevice3DArray(width, height, depth int, format ChannelFormat) (DevicePtr, error)

	FreeHost(mem []byte) error
	FreeDevice(ptr DevicePtr) error

	// Memcpy performs t synchronously.
	Memcpy(t Transfer) error
}

// ChannelKind is the numeric interpretation of a channel.
type ChannelKind int

const (
	ChannelNone ChannelKind = iota
	ChannelSigned
	ChannelUnsigned
	ChannelFloat
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelSigned:
		return "signed"
	case ChannelUnsigned:
		return "unsigned"
	case ChannelFloat:
		return "float"
	default:
		return "none"
	}
}

// ChannelFormat describes the element layout of a device array: bit widths
// of up to four channels and their kind.
type ChannelFormat struct {
	X, Y, Z, W int
	Kind       ChannelKind
}

// NoChannelFormat marks a buffer whose element layout is unknown.
var NoChannelFormat = ChannelFormat{}

// Valid reports whether f describes at least one channel.
func (f ChannelFormat) Valid() bool {
	return f.Kind != ChannelNone && f.Bits() > 0
}

// Bits is the total element width.
func (f ChannelFormat) Bits() int { return f.X + f.Y + f.Z + f.W }

// Bytes is the element size in bytes.
func (f ChannelFormat) Bytes() int { return f.Bits() / 8 }

func (f ChannelFormat) String() string {
	if !f.Valid() {
		return "none"
	}
	return fmt.Sprintf("%s(%d,%d,%d,%d)", f.Kind, f.X, f.Y, f.Z, f.W)
}

// ChannelFormatFor derives an unsigned format for elements of the given size.
// Sizes that do not split into 1 to 4 equal channels of 8, 16 or 32 bits
// yield NoChannelFormat.
func ChannelFormatFor(elementSize int) ChannelFormat {
	for _, channels := range []int{1, 2, 3, 4} {
		if elementSize%channels != 0 {
			continue
		}
		bits := elementSize / channels * 8
		if bits != 8 && bits != 16 && bits != 32 {
			continue
		}
		f := ChannelFormat{X: bits, Kind: ChannelUnsigned}
		if channels > 1 {
			f.Y = bits
		}
		if channels > 2 {
			f.Z = bits
		}
		if channels > 3 {
			f.W = bits
		}
		return f
	}
	return NoChannelFormat
}

// TransferKind is the direction of a copy.
type TransferKind int

const (
	HostToHost TransferKind = iota
	HostToDevice
	DeviceToHost
	DeviceToDevice
)

func (k TransferKind) String() string {
	switch k {
	case HostToHost:
		return "host-to-host"
	case HostToDevice:
		return "host-to-device"
	case DeviceToHost:
		return "device-to-host"
	case DeviceToDevice:
		return "device-to-device"
	default:
		return fmt.Sprintf("transfer(%d)", int(k))
	}
}

func (k TransferKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Location is one end of a transfer. Host is used for host-side ends and
// Device for device-side ends; Offset is a byte offset into either.
type Location struct {
	Host   []byte
	Device DevicePtr
	Offset int
}

// HostAt returns a host location.
func HostAt(mem []byte) Location { return Location{Host: mem} }

// DeviceAt returns a device location.
func DeviceAt(ptr DevicePtr) Location { return Location{Device: ptr} }

// Extent is the region a transfer covers. WidthBytes is the row length in
// bytes; Height and Depth count rows and slices.
type Extent struct {
	WidthBytes int
	Height     int
	Depth      int
}

// Transfer describes one synchronous copy.
//
// Rank 1 copies WidthBytes contiguous bytes. Rank 2 copies Height rows of
// WidthBytes with rows Pitch bytes apart on the host end. Rank 3 copies
// Depth slices of Height rows each.
type Transfer struct {
	Kind   TransferKind
	Rank   int
	Dst    Location
	Src    Location
	Pitch  int
	Extent Extent
}

// Bytes is the number of payload bytes the transfer moves.
func (t Transfer) Bytes() int {
	n := t.Extent.WidthBytes
	if t.Rank >= 2 {
		n *= t.Extent.Height
	}
	if t.Rank >= 3 {
		n *= t.Extent.Depth
	}
	return n
}

func (t Transfer) String() string {
	return fmt.Sprintf("%s rank=%d bytes=%d", t.Kind, t.Rank, t.Bytes())
}
