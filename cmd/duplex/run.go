package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/duplex/internal/logger"
	"github.com/samcharles93/duplex/internal/workload"
)

func runCmd() *cli.Command {
	var asJSON bool

	flags := append([]cli.Flag{}, workloadFlags()...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "json",
		Usage:       "print the report as JSON",
		Destination: &asJSON,
	})

	return &cli.Command{
		Name:  "run",
		Usage: "Run host/device round trips over a buffer",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyWorkloadConfig(cmd, cfg)
			spec, err := specFromFlags()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			report, runErr := workload.Run(ctx, spec, logger.FromContext(ctx))
			if report == nil {
				return cli.Exit(fmt.Sprintf("error: run workload: %v", runErr), 1)
			}
			if asJSON {
				err = writeJSON(os.Stdout, report)
			} else {
				err = writeReport(os.Stdout, report)
			}
			if err != nil {
				return err
			}
			if runErr != nil {
				return cli.Exit(fmt.Sprintf("error: %v", runErr), 1)
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(w io.Writer, r *workload.Report) error {
	s := r.Spec
	_, _ = fmt.Fprintf(w, "workload:   %s\n", r.ID)
	_, _ = fmt.Fprintf(w, "buffer:     %s (%s %s, %d bytes)\n", r.Buffer, s.Kind, formatDims(s.Dims), r.ByteSize)
	_, _ = fmt.Fprintf(w, "backend:    %s\n", s.Backend)
	_, _ = fmt.Fprintf(w, "elapsed:    %s\n\n", r.Elapsed)
	_, _ = fmt.Fprintf(w, "%-8s %-8s %6s %8s %10s %10s %12s  %s\n",
		"CONTEXT", "BACKEND", "ITERS", "UPLOADS", "DOWNLOADS", "BYTES", "DURATION", "ERROR")
	for _, c := range r.Contexts {
		_, err := fmt.Fprintf(w, "%-8d %-8s %6d %8d %10d %10d %12s  %s\n",
			c.Context, c.Backend, c.Iterations, c.Uploads, c.Downloads,
			c.BytesUp+c.BytesDown, c.Duration, c.Error)
		if err != nil {
			return err
		}
	}
	return nil
}
