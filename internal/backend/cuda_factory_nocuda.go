//go:build !cuda

package backend

import "fmt"

func NewCUDA(id int) (Provider, error) {
	return nil, fmt.Errorf("cuda backend is not available in this build")
}
