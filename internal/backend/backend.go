// Package backend selects the context provider a process runs against.
package backend

import (
	"fmt"
	"strings"

	"github.com/samcharles93/duplex/internal/backend/sim"
	"github.com/samcharles93/duplex/pkg/compute"
)

const (
	Sim  = "sim"
	CUDA = "cuda"
	Auto = "auto"
)

// Provider is a compute.Context that can be bound to a thread and closed.
type Provider interface {
	compute.Context
	Name() string
	// Assign binds the calling goroutine's OS thread to the context.
	Assign()
	Release()
	Close() error
}

func Normalize(name string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(name))
	if backend == "" {
		return Auto, nil
	}
	switch backend {
	case Sim, CUDA, Auto:
		return backend, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, sim, or cuda)", backend)
	}
}

// New returns a context with the given id on the named backend. Auto picks
// cuda when this build and machine support it, sim otherwise.
func New(name string, id int) (Provider, error) {
	backend, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	switch backend {
	case Sim:
		return NewSim(id), nil
	case CUDA:
		return NewCUDA(id)
	default:
		if Has(CUDA) {
			if p, err := NewCUDA(id); err == nil {
				return p, nil
			}
		}
		return NewSim(id), nil
	}
}

// NewSim returns a simulated context.
func NewSim(id int) Provider {
	return sim.New(id)
}
