package harness

import (
	"context"
	"sync"
	"testing"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/client"

	"github.com/schmitthub/svcharness/internal/docker"
)

const pingTimeout = 5 * time.Second

var (
	clientOnce   sync.Once
	sharedClient *client.Client
	clientErr    error
)

// RequireDocker skips the test if the Docker daemon is not reachable.
func RequireDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	api, err := docker.NewClient(ctx)
	if err != nil {
		t.Skipf("Docker is not available, skipping test: %v", err)
	}
	api.Close()
}

// NewDockerClient returns the process-wide client for the local daemon,
// skipping the test when there is none. RunTestMain closes it after the run.
func NewDockerClient(t *testing.T) docker.APIClient {
	t.Helper()
	clientOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		sharedClient, clientErr = docker.NewClient(ctx)
	})
	if clientErr != nil {
		t.Skipf("Docker is not available, skipping test: %v", clientErr)
	}
	return sharedClient
}

func closeDockerClient() {
	if sharedClient != nil {
		_ = sharedClient.Close()
	}
}

// RequireImage skips the test unless ref is present locally. Images under
// test are built outside the harness, so a missing one is not a failure.
func RequireImage(t *testing.T, api docker.APIClient, ref string) {
	t.Helper()
	_, err := api.ImageInspect(context.Background(), ref)
	switch {
	case err == nil:
	case cerrdefs.IsNotFound(err):
		t.Skipf("image %s is not available locally, skipping test", ref)
	default:
		t.Fatalf("inspecting image %s: %v", ref, err)
	}
}
