package sim

import (
	"fmt"

	"github.com/samcharles93/duplex/pkg/compute"
)

// Memcpy performs t. Host ends use t.Pitch between rows; device ends are
// tightly packed.
func (c *Context) Memcpy(t compute.Transfer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected(OpMemcpy); err != nil {
		return err
	}

	dstHost, srcHost, err := hostEnds(t.Kind)
	if err != nil {
		return err
	}
	dst, err := c.resolve(t.Dst, dstHost)
	if err != nil {
		return fmt.Errorf("memcpy %s dst: %w", t, err)
	}
	src, err := c.resolve(t.Src, srcHost)
	if err != nil {
		return fmt.Errorf("memcpy %s src: %w", t, err)
	}

	width := t.Extent.WidthBytes
	rows, slices := 1, 1
	switch t.Rank {
	case 1:
	case 2:
		rows = t.Extent.Height
	case 3:
		rows, slices = t.Extent.Height, t.Extent.Depth
	default:
		return fmt.Errorf("memcpy: unsupported rank %d", t.Rank)
	}
	if width < 0 || rows < 0 || slices < 0 {
		return fmt.Errorf("memcpy %s: negative extent", t)
	}

	dstPitch, srcPitch := pitch(t, dstHost), pitch(t, srcHost)
	lines := rows * slices
	if lines > 0 && width > 0 {
		if need := (lines-1)*dstPitch + width; need > len(dst) {
			return fmt.Errorf("memcpy %s: destination holds %d bytes, need %d", t, len(dst), need)
		}
		if need := (lines-1)*srcPitch + width; need > len(src) {
			return fmt.Errorf("memcpy %s: source holds %d bytes, need %d", t, len(src), need)
		}
	}
	for line := range lines {
		copy(dst[line*dstPitch:line*dstPitch+width], src[line*srcPitch:line*srcPitch+width])
	}

	c.stats.Transfers = append(c.stats.Transfers, Record{Kind: t.Kind, Rank: t.Rank, Bytes: t.Bytes()})
	return nil
}

func hostEnds(kind compute.TransferKind) (dstHost, srcHost bool, err error) {
	switch kind {
	case compute.HostToHost:
		return true, true, nil
	case compute.HostToDevice:
		return false, true, nil
	case compute.DeviceToHost:
		return true, false, nil
	case compute.DeviceToDevice:
		return false, false, nil
	default:
		return false, false, fmt.Errorf("memcpy: unknown transfer kind %d", int(kind))
	}
}

func pitch(t compute.Transfer, host bool) int {
	if host && t.Pitch > 0 {
		return t.Pitch
	}
	return t.Extent.WidthBytes
}

// resolve returns the bytes a location addresses. Callers hold c.mu.
func (c *Context) resolve(loc compute.Location, host bool) ([]byte, error) {
	var mem []byte
	if host {
		if loc.Host == nil {
			return nil, fmt.Errorf("no host memory")
		}
		mem = loc.Host
	} else {
		r, ok := c.device[loc.Device]
		if !ok {
			return nil, fmt.Errorf("unknown device pointer %#x", uintptr(loc.Device))
		}
		mem = r.data
	}
	if loc.Offset < 0 || loc.Offset > len(mem) {
		return nil, fmt.Errorf("offset %d outside %d bytes", loc.Offset, len(mem))
	}
	return mem[loc.Offset:], nil
}
