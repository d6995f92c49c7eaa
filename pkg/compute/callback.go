package compute

// Memory is the read-only view of a buffer handed to callbacks.
type Memory interface {
	Name() string
	NumDimensions() int
	Dimension(i int) int
	ElementSize() int
	NumElements() int
	ByteSize() int
}

// SubloadCallback customises how data enters host memory. Load runs the
// first time a Stream's host side is allocated, Subload on every later map.
type SubloadCallback interface {
	Load(mem []byte, m Mapping, b Memory, c Context)
	Subload(mem []byte, m Mapping, b Memory, c Context)
}

// DeviceSubloadCallback is the device-side counterpart of SubloadCallback.
type DeviceSubloadCallback interface {
	Load(ptr DevicePtr, m Mapping, b Memory, c Context)
	Subload(ptr DevicePtr, m Mapping, b Memory, c Context)
}

// HostCallbackFuncs adapts functions to SubloadCallback. Nil fields are skipped.
type HostCallbackFuncs struct {
	OnLoad    func(mem []byte, m Mapping, b Memory, c Context)
	OnSubload func(mem []byte, m Mapping, b Memory, c Context)
}

func (f HostCallbackFuncs) Load(mem []byte, m Mapping, b Memory, c Context) {
	if f.OnLoad != nil {
		f.OnLoad(mem, m, b, c)
	}
}

func (f HostCallbackFuncs) Subload(mem []byte, m Mapping, b Memory, c Context) {
	if f.OnSubload != nil {
		f.OnSubload(mem, m, b, c)
	}
}

// DeviceCallbackFuncs adapts functions to DeviceSubloadCallback.
type DeviceCallbackFuncs struct {
	OnLoad    func(ptr DevicePtr, m Mapping, b Memory, c Context)
	OnSubload func(ptr DevicePtr, m Mapping, b Memory, c Context)
}

func (f DeviceCallbackFuncs) Load(ptr DevicePtr, m Mapping, b Memory, c Context) {
	if f.OnLoad != nil {
		f.OnLoad(ptr, m, b, c)
	}
}

func (f DeviceCallbackFuncs) Subload(ptr DevicePtr, m Mapping, b Memory, c Context) {
	if f.OnSubload != nil {
		f.OnSubload(ptr, m, b, c)
	}
}
