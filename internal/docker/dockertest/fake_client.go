// Package dockertest provides a function-field fake of docker.APIClient.
//
// Usage:
//
//	fake := dockertest.NewFakeAPIClient()
//	fake.ContainerListFn = func(context.Context, container.ListOptions) ([]container.Summary, error) {
//		return nil, nil
//	}
//	orch := container.NewOrchestrator(fake)
//	...
//	fake.AssertCalled(t, "ContainerList")
package dockertest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/schmitthub/svcharness/internal/docker"
)

var _ docker.APIClient = (*FakeAPIClient)(nil)

// FakeAPIClient is a test double for docker.APIClient. Each method has a
// corresponding Fn field. If the field is set, the fake records the call and
// delegates to it. If the field is nil, the call panics with
// "not implemented: MethodName".
type FakeAPIClient struct {
	mu sync.Mutex

	// Calls records the method names invoked on this fake, in order.
	Calls []string

	PingFn  func(ctx context.Context) (types.Ping, error)
	CloseFn func() error

	// --- Container methods ---
	ContainerListFn    func(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerCreateFn  func(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStartFn   func(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStopFn    func(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerInspectFn func(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerLogsFn    func(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerExportFn  func(ctx context.Context, containerID string) (io.ReadCloser, error)
	ContainerWaitFn    func(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemoveFn  func(ctx context.Context, containerID string, options container.RemoveOptions) error

	// --- Image methods ---
	ImageInspectFn func(ctx context.Context, imageID string, inspectOpts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePullFn    func(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)

	// --- Network methods ---
	NetworkCreateFn  func(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	NetworkInspectFn func(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error)
	NetworksPruneFn  func(ctx context.Context, pruneFilter filters.Args) (network.PruneReport, error)
}

// NewFakeAPIClient returns a fake with no Fn fields set. Close is a no-op.
func NewFakeAPIClient() *FakeAPIClient {
	return &FakeAPIClient{}
}

// record appends a method name to the call log (thread-safe).
func (f *FakeAPIClient) record(method string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, method)
	f.mu.Unlock()
}

// notImplemented panics with a descriptive message for unset function fields.
func notImplemented(method string) {
	panic(fmt.Sprintf("not implemented: %s (set %sFn on FakeAPIClient)", method, method))
}

// Reset clears the Calls log.
func (f *FakeAPIClient) Reset() {
	f.mu.Lock()
	f.Calls = nil
	f.mu.Unlock()
}

// CallLog returns a copy of the recorded calls.
func (f *FakeAPIClient) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

// CallCount returns how many times method was invoked.
func (f *FakeAPIClient) CallCount(method string) int {
	n := 0
	for _, c := range f.CallLog() {
		if c == method {
			n++
		}
	}
	return n
}

// AssertCalled asserts that the given method was called at least once.
func (f *FakeAPIClient) AssertCalled(t *testing.T, method string) {
	t.Helper()
	if f.CallCount(method) == 0 {
		t.Errorf("expected %s to be called, calls: %v", method, f.CallLog())
	}
}

// AssertNotCalled asserts that the given method was never called.
func (f *FakeAPIClient) AssertNotCalled(t *testing.T, method string) {
	t.Helper()
	if n := f.CallCount(method); n > 0 {
		t.Errorf("expected %s not to be called, but it was called %d time(s)", method, n)
	}
}

// AssertCalledN asserts that the given method was called exactly n times.
func (f *FakeAPIClient) AssertCalledN(t *testing.T, method string, n int) {
	t.Helper()
	if got := f.CallCount(method); got != n {
		t.Errorf("expected %s to be called %d time(s), got %d", method, n, got)
	}
}

func (f *FakeAPIClient) Ping(ctx context.Context) (types.Ping, error) {
	if f.PingFn == nil {
		notImplemented("Ping")
	}
	f.record("Ping")
	return f.PingFn(ctx)
}

func (f *FakeAPIClient) Close() error {
	f.record("Close")
	if f.CloseFn == nil {
		return nil
	}
	return f.CloseFn()
}

// --- Container method implementations ---

func (f *FakeAPIClient) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	if f.ContainerListFn == nil {
		notImplemented("ContainerList")
	}
	f.record("ContainerList")
	return f.ContainerListFn(ctx, options)
}

func (f *FakeAPIClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	if f.ContainerCreateFn == nil {
		notImplemented("ContainerCreate")
	}
	f.record("ContainerCreate")
	return f.ContainerCreateFn(ctx, config, hostConfig, networkingConfig, platform, containerName)
}

func (f *FakeAPIClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	if f.ContainerStartFn == nil {
		notImplemented("ContainerStart")
	}
	f.record("ContainerStart")
	return f.ContainerStartFn(ctx, containerID, options)
}

func (f *FakeAPIClient) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	if f.ContainerStopFn == nil {
		notImplemented("ContainerStop")
	}
	f.record("ContainerStop")
	return f.ContainerStopFn(ctx, containerID, options)
}

func (f *FakeAPIClient) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	if f.ContainerInspectFn == nil {
		notImplemented("ContainerInspect")
	}
	f.record("ContainerInspect")
	return f.ContainerInspectFn(ctx, containerID)
}

func (f *FakeAPIClient) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	if f.ContainerLogsFn == nil {
		notImplemented("ContainerLogs")
	}
	f.record("ContainerLogs")
	return f.ContainerLogsFn(ctx, containerID, options)
}

func (f *FakeAPIClient) ContainerExport(ctx context.Context, containerID string) (io.ReadCloser, error) {
	if f.ContainerExportFn == nil {
		notImplemented("ContainerExport")
	}
	f.record("ContainerExport")
	return f.ContainerExportFn(ctx, containerID)
}

func (f *FakeAPIClient) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	if f.ContainerWaitFn == nil {
		notImplemented("ContainerWait")
	}
	f.record("ContainerWait")
	return f.ContainerWaitFn(ctx, containerID, condition)
}

func (f *FakeAPIClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	if f.ContainerRemoveFn == nil {
		notImplemented("ContainerRemove")
	}
	f.record("ContainerRemove")
	return f.ContainerRemoveFn(ctx, containerID, options)
}

// --- Image method implementations ---

func (f *FakeAPIClient) ImageInspect(ctx context.Context, imageID string, inspectOpts ...client.ImageInspectOption) (image.InspectResponse, error) {
	if f.ImageInspectFn == nil {
		notImplemented("ImageInspect")
	}
	f.record("ImageInspect")
	return f.ImageInspectFn(ctx, imageID, inspectOpts...)
}

func (f *FakeAPIClient) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	if f.ImagePullFn == nil {
		notImplemented("ImagePull")
	}
	f.record("ImagePull")
	return f.ImagePullFn(ctx, refStr, options)
}

// --- Network method implementations ---

func (f *FakeAPIClient) NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error) {
	if f.NetworkCreateFn == nil {
		notImplemented("NetworkCreate")
	}
	f.record("NetworkCreate")
	return f.NetworkCreateFn(ctx, name, options)
}

func (f *FakeAPIClient) NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error) {
	if f.NetworkInspectFn == nil {
		notImplemented("NetworkInspect")
	}
	f.record("NetworkInspect")
	return f.NetworkInspectFn(ctx, networkID, options)
}

func (f *FakeAPIClient) NetworksPrune(ctx context.Context, pruneFilter filters.Args) (network.PruneReport, error) {
	if f.NetworksPruneFn == nil {
		notImplemented("NetworksPrune")
	}
	f.record("NetworksPrune")
	return f.NetworksPruneFn(ctx, pruneFilter)
}
