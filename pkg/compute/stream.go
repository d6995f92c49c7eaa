package compute

import (
	"errors"
	"fmt"
	"math"
)

// neverLoaded is the modify count of a Stream no source has been copied into.
const neverLoaded = math.MaxUint64

// Stream is the residency state of one buffer in one context.
type Stream struct {
	context Context // not owned
	kind    string

	mapping Mapping
	// incomplete marks a committed mapping whose map call failed. Nothing
	// was handed out, so ending it must not mark the other side stale.
	incomplete bool

	host            []byte
	device          DevicePtr
	hostAllocated   bool
	deviceAllocated bool

	// syncHost and syncDevice mark a side as stale relative to the other.
	syncHost   bool
	syncDevice bool

	allocHint   AllocHint
	modifyCount uint64
}

func newStream(kind string) *Stream {
	return &Stream{kind: kind, modifyCount: neverLoaded}
}

func (s *Stream) has(side Side) bool {
	switch side {
	case SideHost:
		return s.host != nil
	case SideDevice:
		return s.device != 0
	default:
		return false
	}
}

func (s *Stream) pending(side Side) bool {
	if side == SideHost {
		return s.syncHost
	}
	return s.syncDevice
}

func (s *Stream) setPending(side Side, v bool) {
	if side == SideHost {
		s.syncHost = v
	} else {
		s.syncDevice = v
	}
}

// release frees every region the Stream allocated itself.
func (s *Stream) release() error {
	var errs []error
	if s.deviceAllocated && s.device != 0 {
		if err := s.context.FreeDevice(s.device); err != nil {
			errs = append(errs, fmt.Errorf("FreeDevice: %w", err))
		}
	}
	if s.hostAllocated && s.host != nil {
		if err := s.context.FreeHost(s.host); err != nil {
			errs = append(errs, fmt.Errorf("FreeHost: %w", err))
		}
	}
	s.device, s.deviceAllocated = 0, false
	s.host, s.hostAllocated = nil, false
	s.mapping = Unmapped
	s.incomplete = false
	return errors.Join(errs...)
}

func (s *Stream) state() StreamState {
	st := StreamState{
		Context:         s.context.ID(),
		Kind:            s.kind,
		Mapping:         s.mapping.String(),
		HostBytes:       len(s.host),
		HostAllocated:   s.hostAllocated,
		Device:          uintptr(s.device),
		DeviceAllocated: s.deviceAllocated,
		SyncHost:        s.syncHost,
		SyncDevice:      s.syncDevice,
		AllocHint:       s.allocHint.String(),
	}
	if s.modifyCount != neverLoaded {
		count := s.modifyCount
		st.ModifyCount = &count
	}
	return st
}

// StreamState is a snapshot of a Stream for diagnostics.
type StreamState struct {
	Context         int     `json:"context"`
	Kind            string  `json:"kind"`
	Mapping         string  `json:"mapping"`
	HostBytes       int     `json:"host_bytes"`
	HostAllocated   bool    `json:"host_allocated"`
	Device          uintptr `json:"device"`
	DeviceAllocated bool    `json:"device_allocated"`
	SyncHost        bool    `json:"sync_host"`
	SyncDevice      bool    `json:"sync_device"`
	AllocHint       string  `json:"alloc_hint"`
	ModifyCount     *uint64 `json:"modify_count,omitempty"`
}
