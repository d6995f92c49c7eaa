package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/urfave/cli/v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
backend: sim
dims: [8, 8]
element_size: 2
contexts: 4
log_level: debug
server_address: 0.0.0.0:9000
`)
	c := loadConfigFile(path)
	if c.Backend != "sim" || !slices.Equal(c.Dims, []int{8, 8}) {
		t.Fatalf("unexpected config: %+v", c)
	}
	if c.ElementSize == nil || *c.ElementSize != 2 || c.Contexts == nil || *c.Contexts != 4 {
		t.Fatalf("numeric fields not loaded: %+v", c)
	}
	if c.Iterations != nil {
		t.Fatalf("unset field should stay nil")
	}

	if got := loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got.Backend != "" {
		t.Fatalf("missing file should load a zero config")
	}
	if got := loadConfigFile(writeConfig(t, "dims: [nope")); got.Backend != "" || got.Dims != nil {
		t.Fatalf("malformed file should load a zero config")
	}
}

func TestConfigPathFromEnv(t *testing.T) {
	t.Setenv("DUPLEX_CONFIG", "/tmp/duplex.yaml")
	if got := configPath(); got != "/tmp/duplex.yaml" {
		t.Fatalf("configPath = %q", got)
	}
}

func TestConfigOnlyFillsUnsetFlags(t *testing.T) {
	c := loadConfigFile(writeConfig(t, `
backend: sim
kind: linear
dims: [8, 8]
contexts: 4
iterations: 9
rate: 2.5
`))
	cmd := &cli.Command{
		Name:  "test",
		Flags: workloadFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyWorkloadConfig(cmd, c)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"test", "--contexts", "3"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if contexts != 3 {
		t.Fatalf("explicit --contexts was overridden: %d", contexts)
	}
	if backendName != "sim" || kind != "linear" || dims != "8x8" || iterations != 9 {
		t.Fatalf("config not applied: backend=%q kind=%q dims=%q iterations=%d",
			backendName, kind, dims, iterations)
	}

	spec, err := specFromFlags()
	if err != nil {
		t.Fatalf("specFromFlags: %v", err)
	}
	if spec.Contexts != 3 || spec.Rate != 2.5 || !slices.Equal(spec.Dims, []int{8, 8}) {
		t.Fatalf("unexpected spec: %+v", spec)
	}
}

func TestParseDims(t *testing.T) {
	tests := []struct {
		in   string
		want []int
		ok   bool
	}{
		{"64x64", []int{64, 64}, true},
		{"16X16x4", []int{16, 16, 4}, true},
		{"8,2", []int{8, 2}, true},
		{"128", []int{128}, true},
		{"", nil, false},
		{"4x0", nil, false},
		{"4xa", nil, false},
	}
	for _, tt := range tests {
		got, err := parseDims(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseDims(%q) err = %v", tt.in, err)
		}
		if tt.ok && !slices.Equal(got, tt.want) {
			t.Fatalf("parseDims(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if tt.ok && formatDims(got) == "" {
			t.Fatalf("formatDims(%v) is empty", got)
		}
	}
}
