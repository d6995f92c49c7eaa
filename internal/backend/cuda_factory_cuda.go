//go:build cuda

package backend

import "github.com/samcharles93/duplex/internal/backend/cuda"

func NewCUDA(id int) (Provider, error) {
	return cuda.New(id)
}
