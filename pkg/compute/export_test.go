package compute

// Constructed reports how many Streams the buffer has ever created.
func (b *Buffer) Constructed() int64 { return b.constructed.Load() }
