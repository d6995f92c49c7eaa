// Command environment prints the build environment and the context backends
// it can reach, as JSON.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/goccy/go-json"

	"github.com/samcharles93/duplex/internal/affinity"
	"github.com/samcharles93/duplex/internal/backend"
	"github.com/samcharles93/duplex/internal/version"
)

type output struct {
	Version   version.Info    `json:"version"`
	GoOS      string          `json:"go_os"`
	GoArch    string          `json:"go_arch"`
	CPUs      int             `json:"cpus"`
	ThreadIDs bool            `json:"precise_thread_ids"`
	Backends  map[string]bool `json:"backends"`
}

func main() {
	backends := map[string]bool{}
	for _, name := range []string{backend.Sim, backend.CUDA} {
		backends[name] = backend.Has(name)
	}

	out := output{
		Version:   version.Resolve(),
		GoOS:      runtime.GOOS,
		GoArch:    runtime.GOARCH,
		CPUs:      runtime.NumCPU(),
		ThreadIDs: affinity.Precise,
		Backends:  backends,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
