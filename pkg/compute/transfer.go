package compute

import "fmt"

// mapStream moves s to mapping m and makes the requested side current.
// m must be a valid mapping. On failure the mapping stays committed but no
// memory is handed out, and ending it later marks nothing stale.
func (b *Buffer) mapStream(s *Stream, m Mapping) error {
	side := m.Side()
	src := b.variant.source()
	needsSetup := src != nil && src.ModifiedCount() != s.modifyCount

	// Re-entrant map of the side that is already mapped and current.
	if s.mapping.Side() == side && !s.incomplete && !needsSetup && s.has(side) && !s.pending(side) {
		// Keep the write intent of the mapping being replaced.
		if s.mapping.IsTarget() {
			s.setPending(side.Opposite(), true)
		}
		s.mapping = m
		b.subload(s, m, false)
		return nil
	}
	if s.mapping != Unmapped {
		b.unmapStream(s)
	}

	s.mapping = m
	s.incomplete = true

	firstLoad := false
	if !s.has(side) {
		if err := b.variant.alloc(s, side); err != nil {
			return b.streamError(s, "alloc "+side.String(), err)
		}
		firstLoad = true
	}

	if needsSetup {
		if err := b.variant.setup(s, side, src); err != nil {
			return b.streamError(s, "setup "+side.String(), err)
		}
		s.modifyCount = src.ModifiedCount()
		s.setPending(side, false)
		s.setPending(side.Opposite(), true)
	} else if s.pending(side) && s.has(side.Opposite()) {
		if err := b.variant.sync(s, side); err != nil {
			return b.streamError(s, "sync "+side.String(), err)
		}
		s.setPending(side, false)
	}

	s.incomplete = false
	b.subload(s, m, firstLoad)
	return nil
}

// unmapStream ends the current mapping. Target intent marks the other side
// stale whether or not anything was written. A mapping left behind by a
// failed map is dropped without touching either side.
func (b *Buffer) unmapStream(s *Stream) {
	if s.incomplete {
		s.mapping = Unmapped
		s.incomplete = false
		return
	}
	switch {
	case s.mapping&MapHostTarget != 0:
		s.syncDevice = true
	case s.mapping&MapDeviceTarget != 0:
		s.syncHost = true
	}
	s.mapping = Unmapped
}

func (b *Buffer) subload(s *Stream, m Mapping, firstLoad bool) {
	switch m.Side() {
	case SideHost:
		cb := b.hostCallback
		if cb == nil || s.host == nil {
			return
		}
		if firstLoad {
			cb.Load(s.host, m, b, s.context)
		} else {
			cb.Subload(s.host, m, b, s.context)
		}
	case SideDevice:
		cb := b.deviceCallback
		if cb == nil || s.device == 0 {
			return
		}
		if firstLoad {
			cb.Load(s.device, m, b, s.context)
		} else {
			cb.Subload(s.device, m, b, s.context)
		}
	}
}

// shapedTransfer builds a copy of the whole buffer between dst and src,
// flat for rank 1, row-pitched for rank 2 and volumetric for rank 3.
func (b *Buffer) shapedTransfer(kind TransferKind, dst, src Location) Transfer {
	rowBytes := b.Dimension(0) * b.elementSize
	switch b.NumDimensions() {
	case 2:
		return Transfer{
			Kind:   kind,
			Rank:   2,
			Dst:    dst,
			Src:    src,
			Pitch:  rowBytes,
			Extent: Extent{WidthBytes: rowBytes, Height: b.Dimension(1)},
		}
	case 3:
		return Transfer{
			Kind:   kind,
			Rank:   3,
			Dst:    dst,
			Src:    src,
			Pitch:  rowBytes,
			Extent: Extent{WidthBytes: rowBytes, Height: b.Dimension(1), Depth: b.Dimension(2)},
		}
	default:
		return b.flatTransfer(kind, dst, src, b.ByteSize())
	}
}

func (b *Buffer) flatTransfer(kind TransferKind, dst, src Location, n int) Transfer {
	return Transfer{
		Kind:   kind,
		Rank:   1,
		Dst:    dst,
		Src:    src,
		Pitch:  n,
		Extent: Extent{WidthBytes: n},
	}
}

// copyIn runs t on the Stream's context, naming the primitive on failure.
func copyIn(s *Stream, primitive string, t Transfer) error {
	if err := s.context.Memcpy(t); err != nil {
		return fmt.Errorf("%s (%s): %w: %w", primitive, t, ErrTransfer, err)
	}
	return nil
}

// allocHostSide gives s host memory according to its allocation hint.
func (b *Buffer) allocHostSide(s *Stream) error {
	size := b.ByteSize()
	var (
		mem       []byte
		err       error
		primitive string
	)
	if s.allocHint.Has(AllocDynamic) {
		primitive = "AllocPinnedHost"
		mem, err = s.context.AllocPinnedHost(size)
	} else {
		primitive = "AllocHost"
		mem, err = s.context.AllocHost(size)
	}
	if err != nil {
		return fmt.Errorf("%s(%d): %w: %w", primitive, size, ErrAllocation, err)
	}
	if len(mem) < size {
		return fmt.Errorf("%s(%d) returned %d bytes: %w", primitive, size, len(mem), ErrAllocation)
	}
	s.host = mem[:size]
	s.hostAllocated = true
	if s.device != 0 {
		s.syncHost = true
	}
	return nil
}

// fill writes value over count bytes of host memory starting at offset.
// A negative count means to the end of the buffer.
func fill(mem []byte, value byte, offset, count int) error {
	if count < 0 {
		count = len(mem) - offset
	}
	if offset < 0 || count < 0 || offset+count > len(mem) {
		return fmt.Errorf("%w: offset %d count %d size %d", ErrOutOfRange, offset, count, len(mem))
	}
	region := mem[offset : offset+count]
	for i := range region {
		region[i] = value
	}
	return nil
}
