package sim

import (
	"slices"

	"github.com/samcharles93/duplex/pkg/compute"
)

// Record is one completed transfer.
type Record struct {
	Kind  compute.TransferKind `json:"kind"`
	Rank  int                  `json:"rank"`
	Bytes int                  `json:"bytes"`
}

// Stats counts what a context has been asked to do.
type Stats struct {
	HostAllocs   int      `json:"host_allocs"`
	PinnedAllocs int      `json:"pinned_allocs"`
	DeviceAllocs int      `json:"device_allocs"`
	HostFrees    int      `json:"host_frees"`
	DeviceFrees  int      `json:"device_frees"`
	Transfers    []Record `json:"transfers"`
}

func (s Stats) clone() Stats {
	s.Transfers = slices.Clone(s.Transfers)
	return s
}

// Allocs is the total number of allocations of any kind.
func (s Stats) Allocs() int { return s.HostAllocs + s.PinnedAllocs + s.DeviceAllocs }

// Count returns how many transfers of kind and rank ran. Rank 0 matches any rank.
func (s Stats) Count(kind compute.TransferKind, rank int) int {
	n := 0
	for _, r := range s.Transfers {
		if r.Kind == kind && (rank == 0 || r.Rank == rank) {
			n++
		}
	}
	return n
}

// Bytes sums the payload moved by transfers of kind.
func (s Stats) Bytes(kind compute.TransferKind) int {
	n := 0
	for _, r := range s.Transfers {
		if r.Kind == kind {
			n += r.Bytes
		}
	}
	return n
}
