// Package factory wires the real dependencies behind cmdutil.Factory.
package factory

import (
	"context"
	"sync"

	"github.com/schmitthub/svcharness/internal/cmdutil"
	"github.com/schmitthub/svcharness/internal/config"
	"github.com/schmitthub/svcharness/internal/docker"
	"github.com/schmitthub/svcharness/internal/iostreams"
)

// New creates a Factory with lazily initialised dependencies. Called once at
// the CLI entry point; tests build &cmdutil.Factory{} instead.
func New(version string) *cmdutil.Factory {
	f := &cmdutil.Factory{
		Version:   version,
		IOStreams: iostreams.System(),
	}

	// Config is read after flag parsing, so ConfigPath is final by the
	// time the closure first runs.
	var (
		cfgOnce sync.Once
		cfg     *config.Config
		cfgErr  error
	)
	f.Config = func() (*config.Config, error) {
		cfgOnce.Do(func() {
			cfg, cfgErr = config.Load(f.ConfigPath)
		})
		return cfg, cfgErr
	}

	var (
		clientOnce sync.Once
		client     docker.APIClient
		clientErr  error
	)
	f.Client = func(ctx context.Context) (docker.APIClient, error) {
		clientOnce.Do(func() {
			cli, err := docker.NewClient(ctx)
			if err != nil {
				clientErr = err
				return
			}
			client = cli
		})
		return client, clientErr
	}
	f.CloseClient = func() {
		if client != nil {
			client.Close()
		}
	}

	return f
}
