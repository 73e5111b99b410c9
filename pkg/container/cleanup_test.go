package container

import (
	"context"
	"errors"
	"testing"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/svcharness/internal/docker"
	"github.com/schmitthub/svcharness/internal/docker/dockertest"
	"github.com/schmitthub/svcharness/internal/logger/loggertest"
)

func TestRemoveLeaked(t *testing.T) {
	fake := dockertest.NewFakeAPIClient()
	var listOpts dockercontainer.ListOptions
	fake.ContainerListFn = func(_ context.Context, opts dockercontainer.ListOptions) ([]dockercontainer.Summary, error) {
		listOpts = opts
		return []dockercontainer.Summary{
			dockertest.RunningContainerFixture("aaa", "engine1"),
			{ID: "bbb", Names: []string{"/compiler2"}, State: "exited"},
			{ID: "ccc", Names: []string{"/gone"}, State: "exited"},
			{ID: "ddd", Names: []string{"/stuck"}, State: "running"},
		}, nil
	}
	var removed []string
	fake.ContainerRemoveFn = func(_ context.Context, id string, opts dockercontainer.RemoveOptions) error {
		if !opts.Force {
			t.Errorf("remove %s without force", id)
		}
		switch id {
		case "ccc":
			return dockertest.NotFoundError("container ccc")
		case "ddd":
			return errors.New("device busy")
		}
		removed = append(removed, id)
		return nil
	}

	log := loggertest.NewNop().Logger()
	n, err := RemoveLeaked(context.Background(), fake, docker.TestFilter(), &log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
	assert.NotContains(t, err.Error(), "ccc")
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"aaa", "bbb"}, removed)

	assert.True(t, listOpts.All)
	assert.Equal(t, []string{docker.LabelTest + "=true"}, listOpts.Filters.Get("label"))
}

func TestRemoveLeakedListError(t *testing.T) {
	fake := dockertest.NewFakeAPIClient()
	fake.ContainerListFn = func(context.Context, dockercontainer.ListOptions) ([]dockercontainer.Summary, error) {
		return nil, errors.New("daemon gone")
	}

	n, err := RemoveLeaked(context.Background(), fake, docker.ManagedFilter(), nil)
	require.Error(t, err)
	assert.Zero(t, n)
	fake.AssertNotCalled(t, "ContainerRemove")
}
