// Package cmdutil holds what mocksvc commands share: the dependency
// Factory and error reporting.
package cmdutil

import (
	"context"

	"github.com/schmitthub/svcharness/internal/config"
	"github.com/schmitthub/svcharness/internal/docker"
	"github.com/schmitthub/svcharness/internal/iostreams"
)

// Factory provides shared dependencies for CLI commands. internal/cmd/factory
// wires the real implementations; tests construct &Factory{} directly.
type Factory struct {
	// Set from persistent flags before a command runs.
	ConfigPath string
	Debug      bool

	Version string

	IOStreams *iostreams.IOStreams

	Config      func() (*config.Config, error)
	Client      func(context.Context) (docker.APIClient, error)
	CloseClient func()
}
