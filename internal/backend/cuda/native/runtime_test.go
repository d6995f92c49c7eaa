//go:build cuda

package native

import (
	"runtime"
	"testing"
	"unsafe"
)

func requireDevice(t *testing.T) {
	t.Helper()
	count, err := DeviceCount()
	if err != nil {
		t.Fatalf("DeviceCount: %v", err)
	}
	if count < 1 {
		t.Skip("no cuda device available")
	}
	if err := SetDevice(0); err != nil {
		t.Fatalf("SetDevice: %v", err)
	}
}

func TestPinnedAllocAndMemcpyRoundTrip(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	requireDevice(t)

	const n = 256
	hostIn, err := AllocHostPinned(n)
	if err != nil {
		t.Fatalf("AllocHostPinned input: %v", err)
	}
	defer hostIn.Free()
	hostOut, err := AllocHostPinned(n)
	if err != nil {
		t.Fatalf("AllocHostPinned output: %v", err)
	}
	defer hostOut.Free()

	dev, err := AllocDevice(n)
	if err != nil {
		t.Fatalf("AllocDevice: %v", err)
	}
	defer func() {
		if err := dev.Free(); err != nil {
			t.Fatalf("device free: %v", err)
		}
	}()

	in, out := hostIn.Bytes(n), hostOut.Bytes(n)
	for i := range in {
		in[i] = byte(i)
		out[i] = 0
	}
	if err := Memcpy(dev.Ptr(), hostIn.Ptr(), n, HostToDevice); err != nil {
		t.Fatalf("Memcpy H2D: %v", err)
	}
	if err := Memcpy(hostOut.Ptr(), dev.Ptr(), n, DeviceToHost); err != nil {
		t.Fatalf("Memcpy D2H: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestArray2DRoundTrip(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	requireDevice(t)

	const (
		width  = 4
		height = 3
		elem   = 4
	)
	arr, err := AllocArray(8, 8, 8, 8, ChannelUnsigned, width, height)
	if err != nil {
		t.Fatalf("AllocArray: %v", err)
	}
	defer arr.Free()

	src := make([]byte, width*height*elem)
	for i := range src {
		src[i] = byte(i * 3)
	}
	dst := make([]byte, len(src))

	if err := Memcpy2DToArray(arr, unsafe.Pointer(&src[0]), width*elem, width*elem, height, HostToDevice); err != nil {
		t.Fatalf("Memcpy2DToArray: %v", err)
	}
	if err := Memcpy2DFromArray(unsafe.Pointer(&dst[0]), width*elem, arr, width*elem, height, DeviceToHost); err != nil {
		t.Fatalf("Memcpy2DFromArray: %v", err)
	}
	for i := range src {
		if src[i] != dst[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, dst[i], src[i])
		}
	}
}

func TestArray3DRoundTrip(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	requireDevice(t)

	const side = 4
	arr, err := Alloc3DArray(8, 0, 0, 0, ChannelUnsigned, side, side, side)
	if err != nil {
		t.Fatalf("Alloc3DArray: %v", err)
	}
	defer arr.Free()

	src := make([]byte, side*side*side)
	for i := range src {
		src[i] = byte(255 - i)
	}
	dst := make([]byte, len(src))
	if err := Memcpy3DToArray(arr, unsafe.Pointer(&src[0]), side, side, side, side, HostToDevice); err != nil {
		t.Fatalf("Memcpy3DToArray: %v", err)
	}
	if err := Memcpy3DFromArray(unsafe.Pointer(&dst[0]), side, arr, side, side, side, DeviceToHost); err != nil {
		t.Fatalf("Memcpy3DFromArray: %v", err)
	}
	for i := range src {
		if src[i] != dst[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, dst[i], src[i])
		}
	}
}
