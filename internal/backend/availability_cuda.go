//go:build cuda

package backend

import "github.com/samcharles93/duplex/internal/backend/cuda"

func Has(name string) bool {
	switch name {
	case CUDA:
		return cuda.Detect() == nil
	default:
		return name == Sim
	}
}
