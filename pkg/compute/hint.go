package compute

import (
	"fmt"
	"strings"
)

// AllocHint is a bitmask of allocation policy flags.
type AllocHint uint32

const (
	NoAllocHint AllocHint = 0
	// AllocDynamic backs the host side with page-locked memory for data that
	// moves between sides often.
	AllocDynamic AllocHint = 1 << 0
)

// Has reports whether all bits of flag are set.
func (h AllocHint) Has(flag AllocHint) bool { return h&flag == flag }

func (h AllocHint) String() string {
	if h == NoAllocHint {
		return "none"
	}
	var parts []string
	if h.Has(AllocDynamic) {
		parts = append(parts, "dynamic")
	}
	if rest := h &^ AllocDynamic; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseAllocHint reads a '|' or ',' separated list of hint names.
// Unknown names are ignored.
func ParseAllocHint(s string) AllocHint {
	var h AllocHint
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		if strings.EqualFold(strings.TrimSpace(part), "dynamic") {
			h |= AllocDynamic
		}
	}
	return h
}
