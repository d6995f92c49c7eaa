//go:build cuda

package cuda

import (
	"errors"
	"strings"
	"testing"
)

func TestCudaExecutionErrorWrapsError(t *testing.T) {
	boom := errors.New("boom")
	err := cudaExecutionError(boom)
	if !strings.Contains(err.Error(), "cuda execution failed") {
		t.Fatalf("unexpected message: %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("missing wrapped error: %v", err)
	}
}

func TestCudaExecutionErrorValue(t *testing.T) {
	err := cudaExecutionError("panic text")
	if !strings.Contains(err.Error(), "panic text") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestUnknownPointer(t *testing.T) {
	if !strings.Contains(unknownPointer(0x100).Error(), "0x100") {
		t.Fatalf("pointer missing from message")
	}
}
