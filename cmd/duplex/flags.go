package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/duplex/internal/workload"
)

var (
	cfg Config

	backendName string
	kind        string
	dims        string
	elementSize int64
	hint        string
	contexts    int64
	iterations  int64
	pace        float64
	bufferName  string
	logLevel    string
	logFormat   string
	debug       bool
)

func workloadFlags() []cli.Flag {
	def := workload.DefaultSpec()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Aliases:     []string{"b"},
			Usage:       "context backend (auto, sim, cuda)",
			Value:       def.Backend,
			Destination: &backendName,
		},
		&cli.StringFlag{
			Name:        "kind",
			Usage:       "buffer kind (array, linear)",
			Value:       def.Kind,
			Destination: &kind,
		},
		&cli.StringFlag{
			Name:        "dims",
			Aliases:     []string{"d"},
			Usage:       "dimensions, e.g. 64x64 or 16x16x4",
			Value:       formatDims(def.Dims),
			Destination: &dims,
		},
		&cli.Int64Flag{
			Name:        "element-size",
			Aliases:     []string{"es"},
			Usage:       "bytes per element",
			Value:       int64(def.ElementSize),
			Destination: &elementSize,
		},
		&cli.StringFlag{
			Name:        "hint",
			Usage:       "host allocation hint (default, pinned, dynamic)",
			Destination: &hint,
		},
		&cli.Int64Flag{
			Name:        "contexts",
			Aliases:     []string{"n"},
			Usage:       "number of contexts, one goroutine each",
			Value:       int64(def.Contexts),
			Destination: &contexts,
		},
		&cli.Int64Flag{
			Name:        "iterations",
			Aliases:     []string{"i"},
			Usage:       "round trips per context",
			Value:       int64(def.Iterations),
			Destination: &iterations,
		},
		&cli.Float64Flag{
			Name:        "rate",
			Usage:       "round trips per second per context (0 = unlimited)",
			Destination: &pace,
		},
		&cli.StringFlag{
			Name:        "name",
			Usage:       "buffer name (default: derived from the workload id)",
			Destination: &bufferName,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error, fatal)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// specFromFlags builds a workload spec from the flag globals.
func specFromFlags() (workload.Spec, error) {
	d, err := parseDims(dims)
	if err != nil {
		return workload.Spec{}, err
	}
	s := workload.Spec{
		Name:        bufferName,
		Kind:        kind,
		Backend:     backendName,
		Dims:        d,
		ElementSize: int(elementSize),
		Hint:        hint,
		Contexts:    int(contexts),
		Iterations:  int(iterations),
		Rate:        pace,
	}
	return s, s.Validate()
}

func parseDims(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("dims must not be empty")
	}
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == 'x' || r == ',' || r == ' '
	})
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid dimension %q in %q", p, s)
		}
		out = append(out, n)
	}
	return out, nil
}

func formatDims(d []int) string {
	parts := make([]string, len(d))
	for i, n := range d {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "x")
}
