package container

import (
	"context"
	"maps"
	"time"

	"github.com/rs/zerolog"

	"github.com/schmitthub/svcharness/internal/config"
	"github.com/schmitthub/svcharness/internal/docker"
	"github.com/schmitthub/svcharness/internal/logger"
)

// DefaultStopTimeout is the grace period before a stopping container is killed.
const DefaultStopTimeout = time.Second

// Orchestrator creates and tears down containers for Specs. It performs no
// work in the background; every method blocks the caller.
type Orchestrator struct {
	api         docker.APIClient
	network     *BridgeNetwork
	netName     string
	netDriver   string
	exporter    *Exporter
	exportLogs  bool
	exportFS    bool
	stopTimeout time.Duration
	labels      map[string]string
	log         *zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNetwork sets the shared bridge network. The orchestrator does not
// modify it.
func WithNetwork(n *BridgeNetwork) Option {
	return func(o *Orchestrator) { o.network = n }
}

// WithArtifactDir sets the directory artifacts are written to.
func WithArtifactDir(dir string) Option {
	return func(o *Orchestrator) { o.exporter = NewExporter(dir) }
}

// WithExportLogs toggles capture of stdout and stderr on stop.
func WithExportLogs(enabled bool) Option {
	return func(o *Orchestrator) { o.exportLogs = enabled }
}

// WithExportFilesystem toggles the filesystem tarball on stop.
func WithExportFilesystem(enabled bool) Option {
	return func(o *Orchestrator) { o.exportFS = enabled }
}

// WithStopTimeout sets the stop grace period. It is rounded down to whole
// seconds with a minimum of zero.
func WithStopTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stopTimeout = d }
}

// WithLabels adds labels to every container the orchestrator creates.
func WithLabels(labels map[string]string) Option {
	return func(o *Orchestrator) { maps.Copy(o.labels, labels) }
}

// WithLogger sets the logger. The global logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = &l }
}

// WithConfig applies the network, artifact and export settings of cfg.
// Options after it override it.
func WithConfig(cfg *config.Config) Option {
	return func(o *Orchestrator) {
		o.exporter = NewExporter(cfg.Artifacts.Dir)
		o.exportLogs = cfg.Artifacts.ExportLogs
		o.exportFS = cfg.Artifacts.ExportFilesystem
		o.netName = cfg.Network.Name
		o.netDriver = cfg.Network.Driver
	}
}

// NewOrchestrator returns an orchestrator using api. Without WithNetwork it
// owns a private BridgeNetwork named by WithConfig or the default config.
func NewOrchestrator(api docker.APIClient, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:         api,
		exportLogs:  true,
		stopTimeout: DefaultStopTimeout,
		labels:      docker.ManagedLabels(),
	}
	for _, opt := range opts {
		opt(o)
	}

	defaults := config.DefaultConfig()
	if o.network == nil {
		if o.netName == "" {
			o.netName, o.netDriver = defaults.Network.Name, defaults.Network.Driver
		}
		n := NewBridgeNetwork(api, o.netName, o.netDriver)
		n.log = o.log
		o.network = n
	}
	if o.exporter == nil {
		o.exporter = NewExporter(defaults.Artifacts.Dir)
	}
	return o
}

func (o *Orchestrator) logger() *zerolog.Logger {
	if o.log != nil {
		return o.log
	}
	return &logger.Log
}

// Network returns the bridge network containers join.
func (o *Orchestrator) Network() *BridgeNetwork {
	return o.network
}

// Exporter returns the artifact exporter.
func (o *Orchestrator) Exporter() *Exporter {
	return o.exporter
}

// New returns an unstarted handle for spec.
func (o *Orchestrator) New(spec Spec) *Container {
	return &Container{orch: o, spec: spec.clone()}
}

// Start creates and starts a container for spec. The returned handle must be
// stopped by the caller.
func (o *Orchestrator) Start(ctx context.Context, spec Spec) (*Container, error) {
	c := o.New(spec)
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
