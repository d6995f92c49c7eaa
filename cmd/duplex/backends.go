package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/duplex/internal/backend"
)

func backendsCmd() *cli.Command {
	return &cli.Command{
		Name:  "backends",
		Usage: "List the context backends compiled into this build",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			for _, name := range strings.Split(backend.Available(), ",") {
				fmt.Println(name)
			}
			if !backend.Has(backend.CUDA) {
				fmt.Println("(cuda: not available in this build)")
			}
			return nil
		},
	}
}
