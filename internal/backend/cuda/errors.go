//go:build cuda

package cuda

import "fmt"

func cudaExecutionError(rec any) error {
	if recErr, ok := rec.(error); ok {
		return fmt.Errorf("cuda execution failed: %w", recErr)
	}
	return fmt.Errorf("cuda execution failed: %v", rec)
}

func unknownPointer(ptr uintptr) error {
	return fmt.Errorf("cuda: unknown device pointer %#x", ptr)
}
