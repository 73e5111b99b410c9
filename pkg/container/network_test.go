package container

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/svcharness/internal/docker"
	"github.com/schmitthub/svcharness/internal/docker/dockertest"
)

func TestBridgeNetworkEnsureCreatesOnce(t *testing.T) {
	fake := dockertest.NewFakeAPIClient()
	var created atomic.Int32
	fake.NetworkInspectFn = func(context.Context, string, network.InspectOptions) (network.Inspect, error) {
		return network.Inspect{}, dockertest.NotFoundError("network test-network")
	}
	fake.NetworkCreateFn = func(_ context.Context, name string, opts network.CreateOptions) (network.CreateResponse, error) {
		created.Add(1)
		assert.Equal(t, "test-network", name)
		assert.Equal(t, "bridge", opts.Driver)
		assert.Equal(t, docker.ManagedLabelValue, opts.Labels[docker.LabelManaged])
		return network.CreateResponse{ID: "net-1"}, nil
	}

	n := NewBridgeNetwork(fake, "test-network", "")
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := n.Ensure(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "net-1", id)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
}

func TestBridgeNetworkReusesExisting(t *testing.T) {
	fake := dockertest.NewFakeAPIClient()
	fake.NetworkInspectFn = func(context.Context, string, network.InspectOptions) (network.Inspect, error) {
		return network.Inspect{ID: "existing"}, nil
	}

	id, err := NewBridgeNetwork(fake, "test-network", "bridge").Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "existing", id)
	fake.AssertNotCalled(t, "NetworkCreate")
}

func TestBridgeNetworkCreateConflict(t *testing.T) {
	fake := dockertest.NewFakeAPIClient()
	var inspects int
	fake.NetworkInspectFn = func(context.Context, string, network.InspectOptions) (network.Inspect, error) {
		inspects++
		if inspects == 1 {
			return network.Inspect{}, dockertest.NotFoundError("network")
		}
		return network.Inspect{ID: "raced"}, nil
	}
	fake.NetworkCreateFn = func(context.Context, string, network.CreateOptions) (network.CreateResponse, error) {
		return network.CreateResponse{}, cerrdefs.ErrConflict
	}

	id, err := NewBridgeNetwork(fake, "test-network", "bridge").Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "raced", id)
}

func TestBridgeNetworkErrorIsCached(t *testing.T) {
	fake := dockertest.NewFakeAPIClient()
	fake.NetworkInspectFn = func(context.Context, string, network.InspectOptions) (network.Inspect, error) {
		return network.Inspect{}, dockertest.NotFoundError("network")
	}
	boom := errors.New("boom")
	fake.NetworkCreateFn = func(context.Context, string, network.CreateOptions) (network.CreateResponse, error) {
		return network.CreateResponse{}, boom
	}

	n := NewBridgeNetwork(fake, "test-network", "bridge")
	_, err1 := n.Ensure(context.Background())
	_, err2 := n.Ensure(context.Background())

	require.ErrorIs(t, err1, boom)
	var de *docker.DockerError
	require.ErrorAs(t, err1, &de)
	assert.Equal(t, "network_create", de.Op)
	assert.Same(t, err1, err2)
	fake.AssertCalledN(t, "NetworkCreate", 1)
}

func TestBridgeNetworkPrune(t *testing.T) {
	t.Run("filters by managed label", func(t *testing.T) {
		fake := dockertest.NewFakeAPIClient()
		fake.NetworksPruneFn = func(_ context.Context, f filters.Args) (network.PruneReport, error) {
			assert.True(t, f.ExactMatch("label", docker.LabelManaged+"="+docker.ManagedLabelValue))
			return network.PruneReport{NetworksDeleted: []string{"test-network"}}, nil
		}
		NewBridgeNetwork(fake, "test-network", "bridge").Prune(context.Background())
		fake.AssertCalled(t, "NetworksPrune")
	})

	t.Run("swallows errors", func(t *testing.T) {
		fake := dockertest.NewFakeAPIClient()
		fake.NetworksPruneFn = func(context.Context, filters.Args) (network.PruneReport, error) {
			return network.PruneReport{}, errors.New("daemon gone")
		}
		assert.NotPanics(t, func() {
			NewBridgeNetwork(fake, "test-network", "bridge").Prune(context.Background())
		})
	})
}
