//go:build cuda

package cuda

import (
	"fmt"
	"unsafe"

	"github.com/samcharles93/duplex/internal/backend/cuda/native"
	"github.com/samcharles93/duplex/pkg/compute"
)

type end struct {
	host  unsafe.Pointer
	alloc *allocation
	ptr   unsafe.Pointer // linear device address including offset
}

// Memcpy performs t synchronously, picking the array or linear primitive
// from how the device end was allocated.
func (c *Context) Memcpy(t compute.Transfer) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = cudaExecutionError(rec)
		}
	}()

	kind := native.MemcpyKind(t.Kind)
	dstHost := t.Kind == compute.HostToHost || t.Kind == compute.DeviceToHost
	srcHost := t.Kind == compute.HostToHost || t.Kind == compute.HostToDevice

	dst, err := c.resolve(t.Dst, dstHost)
	if err != nil {
		return fmt.Errorf("memcpy %s dst: %w", t, err)
	}
	src, err := c.resolve(t.Src, srcHost)
	if err != nil {
		return fmt.Errorf("memcpy %s src: %w", t, err)
	}

	switch {
	case dst.alloc != nil && dst.alloc.array && src.alloc != nil && src.alloc.array:
		return fmt.Errorf("memcpy %s: array to array copies are not supported", t)
	case dst.alloc != nil && dst.alloc.array:
		return toArray(dst.alloc, src.addr(), t, kind)
	case src.alloc != nil && src.alloc.array:
		return fromArray(dst.addr(), src.alloc, t, kind)
	}

	switch t.Rank {
	case 1:
		return native.Memcpy(dst.addr(), src.addr(), int64(t.Extent.WidthBytes), kind)
	case 2, 3:
		rows := t.Extent.Height
		if t.Rank == 3 {
			rows *= t.Extent.Depth
		}
		return native.Memcpy2D(dst.addr(), pitch(t, dstHost), src.addr(), pitch(t, srcHost),
			t.Extent.WidthBytes, rows, kind)
	default:
		return fmt.Errorf("memcpy: unsupported rank %d", t.Rank)
	}
}

func (e end) addr() unsafe.Pointer {
	if e.host != nil {
		return e.host
	}
	return e.ptr
}

func pitch(t compute.Transfer, host bool) int {
	if host && t.Pitch > 0 {
		return t.Pitch
	}
	return t.Extent.WidthBytes
}

func (c *Context) resolve(loc compute.Location, host bool) (end, error) {
	if host {
		if loc.Offset < 0 || loc.Offset >= len(loc.Host) {
			return end{}, fmt.Errorf("offset %d outside %d host bytes", loc.Offset, len(loc.Host))
		}
		return end{host: unsafe.Pointer(&loc.Host[loc.Offset])}, nil
	}
	a, err := c.lookup(loc.Device)
	if err != nil {
		return end{}, err
	}
	if loc.Offset < 0 || loc.Offset >= a.size {
		return end{}, fmt.Errorf("offset %d outside %d device bytes", loc.Offset, a.size)
	}
	if a.array {
		if loc.Offset != 0 {
			return end{}, fmt.Errorf("arrays cannot be addressed at an offset")
		}
		return end{alloc: a}, nil
	}
	return end{alloc: a, ptr: unsafe.Add(a.buf.Ptr(), loc.Offset)}, nil
}

// toArray copies host or linear memory into an array. Flat transfers are
// reshaped into whole rows of the array.
func toArray(a *allocation, src unsafe.Pointer, t compute.Transfer, kind native.MemcpyKind) error {
	switch t.Rank {
	case 3:
		return native.Memcpy3DToArray(a.arr, src, pitch(t, true), t.Extent.WidthBytes/a.elemBytes,
			t.Extent.Height, t.Extent.Depth, kind)
	case 2:
		return native.Memcpy2DToArray(a.arr, src, pitch(t, true), t.Extent.WidthBytes, t.Extent.Height, kind)
	default:
		row, rows, err := arrayRows(a, t)
		if err != nil {
			return err
		}
		if a.depth > 1 {
			return native.Memcpy3DToArray(a.arr, src, row, a.width, a.height, a.depth, kind)
		}
		return native.Memcpy2DToArray(a.arr, src, row, row, rows, kind)
	}
}

func fromArray(dst unsafe.Pointer, a *allocation, t compute.Transfer, kind native.MemcpyKind) error {
	switch t.Rank {
	case 3:
		return native.Memcpy3DFromArray(dst, pitch(t, true), a.arr, t.Extent.WidthBytes/a.elemBytes,
			t.Extent.Height, t.Extent.Depth, kind)
	case 2:
		return native.Memcpy2DFromArray(dst, pitch(t, true), a.arr, t.Extent.WidthBytes, t.Extent.Height, kind)
	default:
		row, rows, err := arrayRows(a, t)
		if err != nil {
			return err
		}
		if a.depth > 1 {
			return native.Memcpy3DFromArray(dst, row, a.arr, a.width, a.height, a.depth, kind)
		}
		return native.Memcpy2DFromArray(dst, row, a.arr, row, rows, kind)
	}
}

func arrayRows(a *allocation, t compute.Transfer) (row, rows int, err error) {
	row = a.width * a.elemBytes
	n := t.Bytes()
	if row == 0 || n%row != 0 || n > a.size || (a.depth > 1 && n != a.size) {
		return 0, 0, fmt.Errorf("memcpy %s: %d bytes do not fill whole rows of %d", t, n, row)
	}
	return row, n / row, nil
}
