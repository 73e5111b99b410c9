// Package prune provides the prune command.
package prune

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schmitthub/svcharness/internal/cmdutil"
	"github.com/schmitthub/svcharness/internal/docker"
	"github.com/schmitthub/svcharness/internal/logger"
	"github.com/schmitthub/svcharness/pkg/container"
)

// Options holds options for the prune command.
type Options struct {
	TestsOnly bool
}

// NewCmd creates the prune command.
func NewCmd(f *cmdutil.Factory) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "prune [OPTIONS]",
		Short: "Remove leaked harness containers and networks",
		Long: `Force-removes every container carrying the harness label, then prunes
unused harness networks. Use it after a test run was killed before its
cleanup ran.`,
		Example: `  # Remove everything the harness created
  mocksvc prune

  # Only remove containers started by go test
  mocksvc prune --tests-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.TestsOnly, "tests-only", false, "Only remove containers labelled by test runs")

	return cmd
}

func run(ctx context.Context, f *cmdutil.Factory, opts *Options) error {
	ios := f.IOStreams

	client, err := f.Client(ctx)
	if err != nil {
		return err
	}
	if f.CloseClient != nil {
		defer f.CloseClient()
	}

	filter := docker.ManagedFilter()
	if opts.TestsOnly {
		filter = docker.TestFilter()
	}

	n, err := container.RemoveLeaked(ctx, client, filter, &logger.Log)
	fmt.Fprintf(ios.ErrOut, "Removed %d container(s)\n", n)
	if err != nil {
		return err
	}

	container.Prune(ctx, client, &logger.Log)
	fmt.Fprintln(ios.ErrOut, "Pruned unused harness networks")
	return nil
}
