package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/duplex/internal/logger"
	"github.com/samcharles93/duplex/internal/workload"
	"github.com/samcharles93/duplex/pkg/compute"
)

func inspectCmd() *cli.Command {
	var asJSON bool

	flags := append([]cli.Flag{}, workloadFlags()...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "json",
		Usage:       "print the stream table as JSON",
		Destination: &asJSON,
	})

	return &cli.Command{
		Name:  "inspect",
		Usage: "Run a workload and print the per-context stream table",
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
				err = writeJSON(os.Stdout, report.Streams)
			} else {
				_, _ = fmt.Fprintf(os.Stdout, "buffer %s (%d bytes)\n\n", report.Buffer, report.ByteSize)
				err = writeStreams(os.Stdout, report.Streams)
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

func writeStreams(w io.Writer, streams []compute.StreamState) error {
	_, _ = fmt.Fprintf(w, "%-8s %-7s %-16s %10s %-5s %-14s %-5s %-5s %-5s %s\n",
		"CONTEXT", "KIND", "MAPPING", "HOST", "HALOC", "DEVICE", "DALOC", "SYNCH", "SYNCD", "HINT")
	for _, st := range streams {
		_, err := fmt.Fprintf(w, "%-8d %-7s %-16s %10d %-5t %#-14x %-5t %-5t %-5t %s\n",
			st.Context, st.Kind, st.Mapping, st.HostBytes, st.HostAllocated,
			st.Device, st.DeviceAllocated, st.SyncHost, st.SyncDevice, st.AllocHint)
		if err != nil {
			return err
		}
	}
	return nil
}
