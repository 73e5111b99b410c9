// Package serve provides the serve command.
package serve

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/schmitthub/svcharness/internal/cmdutil"
	"github.com/schmitthub/svcharness/internal/config"
	"github.com/schmitthub/svcharness/internal/logger"
	"github.com/schmitthub/svcharness/internal/mocks"
	"github.com/schmitthub/svcharness/internal/signals"
	"github.com/schmitthub/svcharness/pkg/service"
)

// Options holds options for the serve command.
type Options struct {
	Names []string
	Port  int
}

// NewCmd creates the serve command.
func NewCmd(f *cmdutil.Factory) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "serve NAME...",
		Short: "Serve mock services",
		Long: fmt.Sprintf(`Starts an embedded service host per named mock and blocks until
interrupted or until every host is shut down through its control route
(DELETE %s).

Available mocks: %v`, service.ControlPath, mocks.Names()),
		Example: `  # Serve the hello mock on a random port
  mocksvc serve hello

  # Serve two mocks on consecutive ports starting at 50100
  mocksvc serve hello bank --port 50100`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Names = args
			return run(cmd.Context(), f, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "Port of the first service; later services use the following ports (default: random)")

	return cmd
}

func run(ctx context.Context, f *cmdutil.Factory, opts *Options) error {
	cfg := config.DefaultConfig()
	if f.Config != nil {
		loaded, err := f.Config()
		if err != nil {
			return err
		}
		cfg = loaded
	}

	type named struct {
		name string
		host *service.Host
	}
	hosts := make([]named, 0, len(opts.Names))
	for i, name := range opts.Names {
		handler, err := mocks.Lookup(name)
		if err != nil {
			return cmdutil.FlagErrorf("%v", err)
		}
		hostOpts := []service.Option{
			service.WithPortRange(cfg.Ports.ServiceMin, cfg.Ports.ServiceMax),
			service.WithHostname(cfg.Service.Hostname),
			service.WithStartTimeout(cfg.Service.StartTimeout),
			service.WithLogger(logger.Log.With().Str("service", name).Logger()),
		}
		if opts.Port != 0 {
			hostOpts = append(hostOpts, service.WithPort(opts.Port+i))
		}
		hosts = append(hosts, named{name: name, host: service.New(handler, hostOpts...)})
	}

	ctx, cancel := signals.SetupSignalContext(ctx)
	defer cancel()

	for i, n := range hosts {
		if err := n.host.Start(ctx); err != nil {
			for _, started := range hosts[:i] {
				_ = started.host.Close()
			}
			return fmt.Errorf("serving %s: %w", n.name, err)
		}
		fmt.Fprintf(f.IOStreams.Out, "%s\t%s\n", n.name, n.host.URL("/", true))
	}

	g := new(errgroup.Group)
	for _, n := range hosts {
		g.Go(func() error {
			select {
			case <-ctx.Done():
			case <-n.host.Done():
				logger.Info().Str("service", n.name).Msg("service shut down remotely")
			}
			if err := n.host.Close(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", n.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
