package dockertest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// NotFoundError returns an error the SDK's not-found checks recognise.
func NotFoundError(what string) error {
	return fmt.Errorf("%s: %w", what, cerrdefs.ErrNotFound)
}

// MuxedLogs encodes stdout and stderr the way the daemon multiplexes
// non-TTY container output.
func MuxedLogs(stdout, stderr string) io.ReadCloser {
	var buf bytes.Buffer
	if stdout != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(stdout))
	}
	if stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(stderr))
	}
	return io.NopCloser(&buf)
}

// RunningContainerFixture builds a running container.Summary with the given name.
func RunningContainerFixture(id, name string) container.Summary {
	return container.Summary{
		ID:    id,
		Names: []string{"/" + name},
		State: "running",
	}
}

// CreatedContainer records the arguments of a ContainerCreate call.
type CreatedContainer struct {
	Name       string
	Config     *container.Config
	HostConfig *container.HostConfig
	Networking *network.NetworkingConfig
}

// Lifecycle is the state a fake built by SetupLifecycle tracks.
type Lifecycle struct {
	Created  []CreatedContainer
	Removed  []string
	Stdout   string
	Stderr   string
	Export   string
	Status   string
	ExitCode int
}

// SetupLifecycle wires every container and image method to an in-memory
// daemon where the image exists, no containers are running, and create,
// start, stop, logs, export and remove succeed. The returned Lifecycle
// records what happened and controls the logs, export stream and final
// status. Callers can override individual Fn fields afterwards.
func (f *FakeAPIClient) SetupLifecycle() *Lifecycle {
	lc := &Lifecycle{Status: "exited"}
	f.ImageInspectFn = func(_ context.Context, ref string, _ ...client.ImageInspectOption) (image.InspectResponse, error) {
		return image.InspectResponse{ID: "sha256:" + ref}, nil
	}
	f.ContainerListFn = func(context.Context, container.ListOptions) ([]container.Summary, error) {
		return nil, nil
	}
	f.ContainerCreateFn = func(_ context.Context, cfg *container.Config, hc *container.HostConfig, nc *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
		lc.Created = append(lc.Created, CreatedContainer{Name: name, Config: cfg, HostConfig: hc, Networking: nc})
		return container.CreateResponse{ID: "id-" + name}, nil
	}
	f.ContainerStartFn = func(context.Context, string, container.StartOptions) error { return nil }
	f.ContainerStopFn = func(context.Context, string, container.StopOptions) error { return nil }
	f.ContainerInspectFn = func(_ context.Context, id string) (container.InspectResponse, error) {
		return container.InspectResponse{
			ContainerJSONBase: &container.ContainerJSONBase{
				ID:    id,
				Name:  "/" + strings.TrimPrefix(id, "id-"),
				State: &container.State{Status: lc.Status, ExitCode: lc.ExitCode},
			},
		}, nil
	}
	f.ContainerLogsFn = func(_ context.Context, _ string, opts container.LogsOptions) (io.ReadCloser, error) {
		switch {
		case opts.ShowStdout && opts.ShowStderr:
			return MuxedLogs(lc.Stdout, lc.Stderr), nil
		case opts.ShowStderr:
			return MuxedLogs("", lc.Stderr), nil
		default:
			return MuxedLogs(lc.Stdout, ""), nil
		}
	}
	f.ContainerExportFn = func(context.Context, string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(lc.Export)), nil
	}
	f.ContainerRemoveFn = func(_ context.Context, id string, _ container.RemoveOptions) error {
		lc.Removed = append(lc.Removed, id)
		return nil
	}
	return lc
}
