// Package up provides the up command.
package up

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/schmitthub/svcharness/internal/cmdutil"
	"github.com/schmitthub/svcharness/internal/config"
	"github.com/schmitthub/svcharness/internal/logger"
	"github.com/schmitthub/svcharness/internal/signals"
	"github.com/schmitthub/svcharness/pkg/container"
	"github.com/schmitthub/svcharness/pkg/ready"
	"github.com/schmitthub/svcharness/pkg/rest"
)

// teardownTimeout bounds stopping every container once interrupted.
const teardownTimeout = 2 * time.Minute

// Options holds options for the up command.
type Options struct {
	SpecFile string
	Wait     bool
	Env      envVar
}

// envVar collects repeated KEY=VALUE flags.
type envVar map[string]string

var _ pflag.Value = (*envVar)(nil)

func (e *envVar) String() string {
	if len(*e) == 0 {
		return ""
	}
	parts := make([]string, 0, len(*e))
	for _, k := range slices.Sorted(maps.Keys(*e)) {
		parts = append(parts, k+"="+(*e)[k])
	}
	return strings.Join(parts, ",")
}

func (e *envVar) Set(val string) error {
	k, v, ok := strings.Cut(val, "=")
	if !ok || k == "" {
		return fmt.Errorf("invalid environment variable %q: expected KEY=VALUE", val)
	}
	if *e == nil {
		*e = envVar{}
	}
	(*e)[k] = v
	return nil
}

func (e *envVar) Type() string { return "KEY=VALUE" }

// NewCmd creates the up command.
func NewCmd(f *cmdutil.Factory) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "up SPECFILE",
		Short: "Start containers from a spec file until interrupted",
		Long: `Starts every container listed in SPECFILE on the harness network and
keeps them running until Ctrl+C. On exit each container is stopped, its
artifacts are captured, and it is removed.

Specs without a run_id get a fresh one. --env values override the env
of every spec.`,
		Example: `  # Start the containers in containers.yaml
  mocksvc up containers.yaml

  # Also wait for each container's first published port to pass readiness
  mocksvc up containers.yaml --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.SpecFile = args[0]
			return run(cmd.Context(), f, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Wait, "wait", "w", false, "Wait for readiness on each container's first published port")
	cmd.Flags().VarP(&opts.Env, "env", "e", "Set an environment variable in every container (repeatable)")

	return cmd
}

func run(ctx context.Context, f *cmdutil.Factory, opts *Options) error {
	ios := f.IOStreams

	specs, err := container.LoadSpecFile(opts.SpecFile)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return cmdutil.FlagErrorf("%s lists no containers", opts.SpecFile)
	}

	cfg, err := f.Config()
	if err != nil {
		return err
	}
	client, err := f.Client(ctx)
	if err != nil {
		return err
	}
	if f.CloseClient != nil {
		defer f.CloseClient()
	}

	orch := container.NewOrchestrator(client, container.WithConfig(cfg), container.WithLogger(logger.Log))

	ctx, cancel := signals.SetupSignalContext(ctx)
	defer cancel()

	var started []*container.Container
	teardown := func() error {
		tctx, tcancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer tcancel()
		var errs []error
		for _, c := range slices.Backward(started) {
			if err := c.Stop(tctx); err != nil {
				errs = append(errs, fmt.Errorf("stopping %s: %w", c.Name(), err))
				continue
			}
			fmt.Fprintf(ios.ErrOut, "Stopped %s\n", c.Name())
		}
		orch.Network().Prune(tctx)
		return errors.Join(errs...)
	}

	for _, spec := range specs {
		if spec.RunID == "" {
			spec.RunID = container.NewRunID()
		}
		if len(opts.Env) > 0 {
			env := maps.Clone(spec.Env)
			if env == nil {
				env = map[string]string{}
			}
			maps.Copy(env, opts.Env)
			spec.Env = env
		}
		c, err := orch.Start(ctx, spec)
		if err != nil {
			return errors.Join(fmt.Errorf("starting %s: %w", spec.ContainerName(), err), teardown())
		}
		started = append(started, c)
		fmt.Fprintf(ios.Out, "%s\t%s\t%s\n", c.Name(), spec.Image(), formatPorts(spec.Ports))

		if opts.Wait {
			if err := waitReady(ctx, cfg, spec); err != nil {
				return errors.Join(err, teardown())
			}
		}
	}
	fmt.Fprintf(ios.ErrOut, "Artifacts in %s. Press Ctrl+C to stop.\n", orch.Exporter().Dir())

	<-ctx.Done()
	return teardown()
}

func waitReady(ctx context.Context, cfg *config.Config, spec container.Spec) error {
	port, ok := firstHostPort(spec.Ports)
	if !ok {
		return nil
	}
	client := rest.New("localhost", port)
	defer client.CloseIdleConnections()
	return ready.WaitUntilReady(ctx, client,
		ready.WithPath(cfg.Ready.Path),
		ready.WithInterval(cfg.Ready.Interval),
		ready.WithTimeout(config.ReadyTimeout(cfg)),
	)
}

func firstHostPort(ports map[string]int) (int, bool) {
	if len(ports) == 0 {
		return 0, false
	}
	return ports[slices.Sorted(maps.Keys(ports))[0]], true
}

func formatPorts(ports map[string]int) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ports))
	for _, k := range slices.Sorted(maps.Keys(ports)) {
		parts = append(parts, fmt.Sprintf("%d->%s", ports[k], k))
	}
	return strings.Join(parts, ",")
}
