package compute

import "errors"

// Configuration errors.
var (
	ErrNoDimensions       = errors.New("compute: no dimensions specified")
	ErrNoElementSize      = errors.New("compute: no element size specified")
	ErrZeroDimension      = errors.New("compute: dimension of size zero")
	ErrRankTooHigh        = errors.New("compute: too many dimensions")
	ErrSourceSize         = errors.New("compute: source size does not match buffer size")
	ErrMipmapsUnsupported = errors.New("compute: images with mipmaps are not supported")
)

// Usage errors.
var (
	ErrClear          = errors.New("compute: buffer is not initialized")
	ErrNilContext     = errors.New("compute: nil context")
	ErrWrongThread    = errors.New("compute: calling thread differs from the context's thread")
	ErrInvalidMapping = errors.New("compute: invalid mapping")
	ErrWrongSide      = errors.New("compute: mapping addresses the wrong side")
	ErrNoStream       = errors.New("compute: no stream for context")
	ErrOutOfRange     = errors.New("compute: range exceeds buffer size")
)

// Allocation and transfer errors.
var (
	ErrAllocation      = errors.New("compute: allocation failed")
	ErrTransfer        = errors.New("compute: transfer failed")
	ErrNoSourceData    = errors.New("compute: source has no data")
	ErrNoChannelFormat = errors.New("compute: no valid channel format")
)
