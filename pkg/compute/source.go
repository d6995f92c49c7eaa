package compute

import "sync"

// Source is external data a buffer can be seeded from. ModifiedCount must
// change whenever Data changes.
type Source interface {
	SizeInBytes() int
	Data() []byte
	ModifiedCount() uint64
}

// Image is an image-like Source. Only single-level images are accepted.
type Image interface {
	Source
	MipmapLevels() int
}

type named interface {
	Name() string
}

func sourceName(src Source) string {
	if n, ok := src.(named); ok && n.Name() != "" {
		return n.Name()
	}
	return "<unnamed>"
}

// HostData is an in-memory Source and Image.
type HostData struct {
	name   string
	mu     sync.Mutex
	data   []byte
	count  uint64
	levels int
}

// NewHostData wraps data. The slice is not copied.
func NewHostData(name string, data []byte) *HostData {
	return &HostData{name: name, data: data, levels: 1}
}

func (d *HostData) Name() string { return d.name }

func (d *HostData) SizeInBytes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.data)
}

func (d *HostData) Data() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data
}

func (d *HostData) ModifiedCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func (d *HostData) MipmapLevels() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.levels
}

// SetMipmapLevels records how many levels the image claims to hold.
func (d *HostData) SetMipmapLevels(n int) {
	d.mu.Lock()
	d.levels = n
	d.mu.Unlock()
}

// Dirty bumps the modification counter after the caller changed Data in place.
func (d *HostData) Dirty() {
	d.mu.Lock()
	d.count++
	d.mu.Unlock()
}

// Replace swaps the payload and bumps the modification counter.
func (d *HostData) Replace(data []byte) {
	d.mu.Lock()
	d.data = data
	d.count++
	d.mu.Unlock()
}
