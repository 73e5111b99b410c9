package harness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/schmitthub/svcharness/internal/docker"
	"github.com/schmitthub/svcharness/internal/logger"
	"github.com/schmitthub/svcharness/internal/netutil"
	"github.com/schmitthub/svcharness/pkg/container"
)

// stopTimeout bounds teardown of one container, artifact capture included.
const stopTimeout = 2 * time.Minute

var (
	networkMu  sync.Mutex
	networkAPI docker.APIClient
	bridge     *container.BridgeNetwork
)

// Network returns the bridge network shared by every orchestrator built on
// api, so it is created at most once per process. A different api gets a
// fresh network.
func Network(t *testing.T, api docker.APIClient) *container.BridgeNetwork {
	t.Helper()
	c, err := Config()
	if err != nil {
		t.Fatalf("loading harness config: %v", err)
	}
	networkMu.Lock()
	defer networkMu.Unlock()
	if bridge == nil || networkAPI != api {
		bridge = container.NewBridgeNetwork(api, c.Network.Name, c.Network.Driver)
		networkAPI = api
	}
	return bridge
}

// NewOrchestrator returns an orchestrator configured from Config on the
// shared Network. Its containers carry the test labels for t, so
// RunTestMain can find them if the process dies before cleanup.
func NewOrchestrator(t *testing.T, api docker.APIClient, opts ...container.Option) *container.Orchestrator {
	t.Helper()
	c, err := Config()
	if err != nil {
		t.Fatalf("loading harness config: %v", err)
	}
	base := []container.Option{
		container.WithConfig(c),
		container.WithNetwork(Network(t, api)),
		container.WithLabels(docker.TestLabels(t.Name())),
	}
	return container.NewOrchestrator(api, append(base, opts...)...)
}

// StartContainer starts a container for spec and registers its teardown.
// Teardown stops the container unless the test already did. Log events
// carry the test name and run ID until then.
func StartContainer(t *testing.T, orch *container.Orchestrator, spec container.Spec) *container.Container {
	t.Helper()
	logger.SetContext(t.Name(), spec.RunID)
	t.Cleanup(logger.ClearContext)
	c := orch.New(spec)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("starting container %s: %v", spec.ContainerName(), err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := c.Stop(ctx); err != nil && !errors.Is(err, container.ErrNotRunning) {
			t.Errorf("stopping container %s: %v", c.Name(), err)
		}
	})
	return c
}

// StopContainer stops c, failing the test on any error. Calling it twice is
// a programming error.
func StopContainer(t *testing.T, c *container.Container) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stopping container %s: %v", c.Name(), err)
	}
}

// RandomContainerPort picks a host port from the configured container range.
// Collisions are possible and surface as a start failure.
func RandomContainerPort(t *testing.T) int {
	t.Helper()
	c, err := Config()
	if err != nil {
		t.Fatalf("loading harness config: %v", err)
	}
	return netutil.RandomPort(c.Ports.ContainerMin, c.Ports.ContainerMax)
}
