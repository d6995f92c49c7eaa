package compute

import "fmt"

// Mapping selects a memory side and an access intent.
type Mapping uint32

const (
	Unmapped        Mapping = 0
	MapHostSource   Mapping = 1 << 0
	MapHostTarget   Mapping = 1 << 1
	MapDeviceSource Mapping = 1 << 2
	MapDeviceTarget Mapping = 1 << 3

	MapHost   = MapHostSource | MapHostTarget
	MapDevice = MapDeviceSource | MapDeviceTarget
)

// IsHost reports whether m addresses host memory.
func (m Mapping) IsHost() bool { return m&MapHost != 0 }

// IsDevice reports whether m addresses device memory.
func (m Mapping) IsDevice() bool { return m&MapDevice != 0 }

// IsTarget reports write intent.
func (m Mapping) IsTarget() bool { return m&(MapHostTarget|MapDeviceTarget) != 0 }

// Valid reports whether m names exactly one side.
func (m Mapping) Valid() bool {
	if m&^(MapHost|MapDevice) != 0 {
		return false
	}
	return m.IsHost() != m.IsDevice()
}

// Side returns the side m addresses. Unmapped and mixed mappings return SideNone.
func (m Mapping) Side() Side {
	switch {
	case !m.Valid():
		return SideNone
	case m.IsHost():
		return SideHost
	default:
		return SideDevice
	}
}

func (m Mapping) String() string {
	switch m {
	case Unmapped:
		return "UNMAPPED"
	case MapHostSource:
		return "HOST_SOURCE"
	case MapHostTarget:
		return "HOST_TARGET"
	case MapHost:
		return "HOST"
	case MapDeviceSource:
		return "DEVICE_SOURCE"
	case MapDeviceTarget:
		return "DEVICE_TARGET"
	case MapDevice:
		return "DEVICE"
	default:
		return fmt.Sprintf("MAPPING(0x%x)", uint32(m))
	}
}

// ParseMapping accepts the names produced by Mapping.String.
func ParseMapping(s string) (Mapping, error) {
	for _, m := range []Mapping{Unmapped, MapHostSource, MapHostTarget, MapHost, MapDeviceSource, MapDeviceTarget, MapDevice} {
		if m.String() == s {
			return m, nil
		}
	}
	return Unmapped, fmt.Errorf("unknown mapping %q", s)
}

// Side is one of the two memory spaces a buffer lives in.
type Side int

const (
	SideNone Side = iota
	SideHost
	SideDevice
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	switch s {
	case SideHost:
		return SideDevice
	case SideDevice:
		return SideHost
	default:
		return SideNone
	}
}

func (s Side) String() string {
	switch s {
	case SideHost:
		return "host"
	case SideDevice:
		return "device"
	default:
		return "none"
	}
}
