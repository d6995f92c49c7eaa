//go:build cuda

package native

/*
#cgo CFLAGS: -I/usr/local/cuda/include
#cgo LDFLAGS: -L/usr/local/cuda/lib64 -lcudart

#include <cuda_runtime_api.h>

static int duplexCudaGetDeviceCount(int* out) {
	return (int)cudaGetDeviceCount(out);
}

static int duplexCudaSetDevice(int device) {
	return (int)cudaSetDevice(device);
}

static const char* duplexCudaGetErrorString(int err) {
	return cudaGetErrorString((cudaError_t)err);
}

static int duplexCudaMalloc(void** ptr, size_t size) {
	return (int)cudaMalloc(ptr, size);
}

static int duplexCudaFree(void* ptr) {
	return (int)cudaFree(ptr);
}

static int duplexCudaMallocHost(void** ptr, size_t size) {
	return (int)cudaMallocHost(ptr, size);
}

static int duplexCudaFreeHost(void* ptr) {
	return (int)cudaFreeHost(ptr);
}

static int duplexCudaMallocArray(cudaArray_t* out, int x, int y, int z, int w, int kind, size_t width, size_t height) {
	struct cudaChannelFormatDesc desc = cudaCreateChannelDesc(x, y, z, w, (enum cudaChannelFormatKind)kind);
	return (int)cudaMallocArray(out, &desc, width, height, 0);
}

static int duplexCudaMalloc3DArray(cudaArray_t* out, int x, int y, int z, int w, int kind, size_t width, size_t height, size_t depth) {
	struct cudaChannelFormatDesc desc = cudaCreateChannelDesc(x, y, z, w, (enum cudaChannelFormatKind)kind);
	return (int)cudaMalloc3DArray(out, &desc, make_cudaExtent(width, height, depth), 0);
}

static int duplexCudaFreeArray(cudaArray_t arr) {
	return (int)cudaFreeArray(arr);
}

static int duplexCudaMemcpy(void* dst, const void* src, size_t size, int kind) {
	return (int)cudaMemcpy(dst, src, size, (enum cudaMemcpyKind)kind);
}

static int duplexCudaMemcpy2D(void* dst, size_t dpitch, const void* src, size_t spitch, size_t width, size_t height, int kind) {
	return (int)cudaMemcpy2D(dst, dpitch, src, spitch, width, height, (enum cudaMemcpyKind)kind);
}

static int duplexCudaMemcpy2DToArray(cudaArray_t dst, const void* src, size_t spitch, size_t width, size_t height, int kind) {
	return (int)cudaMemcpy2DToArray(dst, 0, 0, src, spitch, width, height, (enum cudaMemcpyKind)kind);
}

static int duplexCudaMemcpy2DFromArray(void* dst, size_t dpitch, cudaArray_t src, size_t width, size_t height, int kind) {
	return (int)cudaMemcpy2DFromArray(dst, dpitch, src, 0, 0, width, height, (enum cudaMemcpyKind)kind);
}

static int duplexCudaMemcpy3DToArray(cudaArray_t dst, void* src, size_t pitch, size_t width, size_t height, size_t depth, int kind) {
	struct cudaMemcpy3DParms p = {0};
	p.srcPtr = make_cudaPitchedPtr(src, pitch, width, height);
	p.dstArray = dst;
	p.extent = make_cudaExtent(width, height, depth);
	p.kind = (enum cudaMemcpyKind)kind;
	return (int)cudaMemcpy3D(&p);
}

static int duplexCudaMemcpy3DFromArray(void* dst, size_t pitch, cudaArray_t src, size_t width, size_t height, size_t depth, int kind) {
	struct cudaMemcpy3DParms p = {0};
	p.srcArray = src;
	p.dstPtr = make_cudaPitchedPtr(dst, pitch, width, height);
	p.extent = make_cudaExtent(width, height, depth);
	p.kind = (enum cudaMemcpyKind)kind;
	return (int)cudaMemcpy3D(&p);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// MemcpyKind values match cudaMemcpyKind.
type MemcpyKind int

const (
	HostToHost     MemcpyKind = 0
	HostToDevice   MemcpyKind = 1
	DeviceToHost   MemcpyKind = 2
	DeviceToDevice MemcpyKind = 3
)

// ChannelKind values match cudaChannelFormatKind.
type ChannelKind int

const (
	ChannelSigned   ChannelKind = 0
	ChannelUnsigned ChannelKind = 1
	ChannelFloat    ChannelKind = 2
)

type DeviceBuffer struct {
	ptr unsafe.Pointer
}

type HostBuffer struct {
	ptr unsafe.Pointer
}

// Array is an opaque CUDA array handle.
type Array struct {
	ptr C.cudaArray_t
}

func DeviceCount() (int, error) {
	var count C.int
	if err := cudaErr(C.duplexCudaGetDeviceCount(&count)); err != nil {
		return 0, err
	}
	return int(count), nil
}

// SetDevice makes device current for the calling OS thread.
func SetDevice(device int) error {
	return cudaErr(C.duplexCudaSetDevice(C.int(device)))
}

func AllocDevice(bytes int64) (DeviceBuffer, error) {
	if bytes <= 0 {
		return DeviceBuffer{}, fmt.Errorf("device alloc size must be > 0")
	}
	var ptr unsafe.Pointer
	if err := cudaErr(C.duplexCudaMalloc(&ptr, C.size_t(bytes))); err != nil {
		return DeviceBuffer{}, err
	}
	return DeviceBuffer{ptr: ptr}, nil
}

// DeviceBufferAt wraps an address previously returned by AllocDevice.
func DeviceBufferAt(addr uintptr) DeviceBuffer {
	return DeviceBuffer{ptr: unsafe.Pointer(addr)}
}

func (b DeviceBuffer) Free() error {
	if b.ptr == nil {
		return nil
	}
	return cudaErr(C.duplexCudaFree(b.ptr))
}

func (b DeviceBuffer) Ptr() unsafe.Pointer {
	return b.ptr
}

func (b DeviceBuffer) Addr() uintptr {
	return uintptr(b.ptr)
}

func AllocHostPinned(bytes int64) (HostBuffer, error) {
	if bytes <= 0 {
		return HostBuffer{}, fmt.Errorf("host alloc size must be > 0")
	}
	var ptr unsafe.Pointer
	if err := cudaErr(C.duplexCudaMallocHost(&ptr, C.size_t(bytes))); err != nil {
		return HostBuffer{}, err
	}
	return HostBuffer{ptr: ptr}, nil
}

// HostBufferAt wraps pinned memory previously returned by AllocHostPinned.
func HostBufferAt(ptr unsafe.Pointer) HostBuffer {
	return HostBuffer{ptr: ptr}
}

func (b HostBuffer) Free() error {
	if b.ptr == nil {
		return nil
	}
	return cudaErr(C.duplexCudaFreeHost(b.ptr))
}

func (b HostBuffer) Ptr() unsafe.Pointer {
	return b.ptr
}

// Bytes views n bytes of the pinned region as a Go slice.
func (b HostBuffer) Bytes(n int) []byte {
	return unsafe.Slice((*byte)(b.ptr), n)
}

// AllocArray allocates a 1D (height 0) or 2D CUDA array.
func AllocArray(x, y, z, w int, kind ChannelKind, width, height int) (Array, error) {
	var arr C.cudaArray_t
	err := cudaErr(C.duplexCudaMallocArray(&arr, C.int(x), C.int(y), C.int(z), C.int(w), C.int(kind),
		C.size_t(width), C.size_t(height)))
	if err != nil {
		return Array{}, err
	}
	return Array{ptr: arr}, nil
}

// Alloc3DArray allocates a 3D CUDA array. Extents are in elements.
func Alloc3DArray(x, y, z, w int, kind ChannelKind, width, height, depth int) (Array, error) {
	var arr C.cudaArray_t
	err := cudaErr(C.duplexCudaMalloc3DArray(&arr, C.int(x), C.int(y), C.int(z), C.int(w), C.int(kind),
		C.size_t(width), C.size_t(height), C.size_t(depth)))
	if err != nil {
		return Array{}, err
	}
	return Array{ptr: arr}, nil
}

// ArrayAt wraps a handle previously returned by AllocArray or Alloc3DArray.
func ArrayAt(addr uintptr) Array {
	return Array{ptr: C.cudaArray_t(unsafe.Pointer(addr))}
}

func (a Array) Free() error {
	if a.ptr == nil {
		return nil
	}
	return cudaErr(C.duplexCudaFreeArray(a.ptr))
}

func (a Array) Addr() uintptr {
	return uintptr(unsafe.Pointer(a.ptr))
}

func Memcpy(dst, src unsafe.Pointer, bytes int64, kind MemcpyKind) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.duplexCudaMemcpy(dst, src, C.size_t(bytes), C.int(kind)))
}

func Memcpy2D(dst unsafe.Pointer, dpitch int, src unsafe.Pointer, spitch int, width, height int, kind MemcpyKind) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	return cudaErr(C.duplexCudaMemcpy2D(dst, C.size_t(dpitch), src, C.size_t(spitch),
		C.size_t(width), C.size_t(height), C.int(kind)))
}

// Memcpy2DToArray copies height rows of width bytes into dst.
func Memcpy2DToArray(dst Array, src unsafe.Pointer, spitch, width, height int, kind MemcpyKind) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	return cudaErr(C.duplexCudaMemcpy2DToArray(dst.ptr, src, C.size_t(spitch),
		C.size_t(width), C.size_t(height), C.int(kind)))
}

func Memcpy2DFromArray(dst unsafe.Pointer, dpitch int, src Array, width, height int, kind MemcpyKind) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	return cudaErr(C.duplexCudaMemcpy2DFromArray(dst, C.size_t(dpitch), src.ptr,
		C.size_t(width), C.size_t(height), C.int(kind)))
}

// Memcpy3DToArray copies a volume into dst. width is in elements, pitch in bytes.
func Memcpy3DToArray(dst Array, src unsafe.Pointer, pitch, width, height, depth int, kind MemcpyKind) error {
	return cudaErr(C.duplexCudaMemcpy3DToArray(dst.ptr, src, C.size_t(pitch),
		C.size_t(width), C.size_t(height), C.size_t(depth), C.int(kind)))
}

func Memcpy3DFromArray(dst unsafe.Pointer, pitch int, src Array, width, height, depth int, kind MemcpyKind) error {
	return cudaErr(C.duplexCudaMemcpy3DFromArray(dst, C.size_t(pitch), src.ptr,
		C.size_t(width), C.size_t(height), C.size_t(depth), C.int(kind)))
}

func cudaErr(code C.int) error {
	if code == 0 {
		return nil
	}
	msg := C.GoString(C.duplexCudaGetErrorString(code))
	return fmt.Errorf("cuda runtime error %d: %s", int(code), msg)
}
