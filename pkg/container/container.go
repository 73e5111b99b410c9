package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	cerrdefs "github.com/containerd/errdefs"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/go-units"
	"github.com/rs/zerolog"

	"github.com/schmitthub/svcharness/internal/docker"
)

// State is the lifecycle position of a Container handle.
type State int

const (
	Unstarted State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// UnknownStatus is recorded when the final status cannot be read.
const UnknownStatus = "unknown"

var (
	// ErrAlreadyStarted is returned by Start on a handle that is not unstarted.
	ErrAlreadyStarted = errors.New("container already started")
	// ErrNotRunning is returned by Stop and friends on a handle that is not running.
	ErrNotRunning = errors.New("container not running")
)

// Container is a handle to one run of a Spec. Its lifecycle is
// unstarted, running, stopped; transitions are one-way.
type Container struct {
	orch *Orchestrator
	spec Spec

	mu    sync.Mutex
	state State
	id    string
}

// Spec returns a copy of the spec the handle was created from.
func (c *Container) Spec() Spec {
	return c.spec.clone()
}

// Name returns the derived container name.
func (c *Container) Name() string {
	return c.spec.ContainerName()
}

// ID returns the runtime container ID, or "" when not running.
func (c *Container) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// State returns the handle's lifecycle state.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Container) logger() zerolog.Logger {
	return c.orch.logger().With().
		Str("container", c.Name()).
		Str("image", c.spec.Image()).
		Str("run_id", c.spec.RunID).
		Logger()
}

// Start writes the startup artifacts, removes any stale running container of
// the same name, resolves the image and creates and starts the container on
// the bridge network.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Unstarted {
		return fmt.Errorf("%s: %w", c.Name(), ErrAlreadyStarted)
	}

	log := c.logger()
	api := c.orch.api
	name := c.Name()

	if err := c.orch.exporter.WriteStartupArtifacts(c.spec); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if err := c.removeStale(ctx); err != nil {
		return err
	}

	if err := c.ensureImage(ctx); err != nil {
		return err
	}

	if _, err := c.orch.network.Ensure(ctx); err != nil {
		return err
	}

	cfg, hostCfg, netCfg, err := c.buildConfigs()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	resp, err := api.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
	if err != nil {
		return docker.ErrContainerCreateFailed(name, err)
	}
	for _, w := range resp.Warnings {
		log.Warn().Str("warning", w).Msg("container create warning")
	}

	if err := api.ContainerStart(ctx, resp.ID, dockercontainer.StartOptions{}); err != nil {
		if rmErr := api.ContainerRemove(ctx, resp.ID, dockercontainer.RemoveOptions{Force: true}); rmErr != nil {
			log.Warn().Err(rmErr).Msg("removing container after failed start")
		}
		return docker.ErrContainerStartFailed(name, err)
	}

	c.id = resp.ID
	c.state = Running
	log.Info().Str("id", docker.ShortID(resp.ID)).Msg("container started")
	return nil
}

// removeStale force-removes running containers bearing this handle's name.
func (c *Container) removeStale(ctx context.Context) error {
	name := c.Name()
	list, err := c.orch.api.ContainerList(ctx, dockercontainer.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return fmt.Errorf("listing containers for %s: %w", name, err)
	}
	for _, existing := range list {
		if !hasName(existing, name) {
			continue
		}
		c.orch.logger().Info().Str("container", name).Str("id", docker.ShortID(existing.ID)).Msg("removing stale container")
		if err := c.orch.api.ContainerRemove(ctx, existing.ID, dockercontainer.RemoveOptions{Force: true}); err != nil && !cerrdefs.IsNotFound(err) {
			return docker.ErrContainerRemoveFailed(name, err)
		}
	}
	return nil
}

// hasName matches exactly; the runtime's name filter is a substring match.
func hasName(s dockercontainer.Summary, name string) bool {
	for _, n := range s.Names {
		if n == "/"+name || n == name {
			return true
		}
	}
	return false
}

// ensureImage pulls the image when it is not present locally. Lookup errors
// other than not-found are returned as is.
func (c *Container) ensureImage(ctx context.Context) error {
	ref := c.spec.Image()
	_, err := c.orch.api.ImageInspect(ctx, ref)
	if err == nil {
		return nil
	}
	if !cerrdefs.IsNotFound(err) {
		return docker.ErrImageInspectFailed(ref, err)
	}

	c.orch.logger().Info().Str("image", ref).Msg("image not found locally, pulling")
	rc, err := c.orch.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return docker.ErrImagePullFailed(ref, err)
	}
	defer rc.Close()
	if err := jsonmessage.DisplayJSONMessagesStream(rc, io.Discard, 0, false, nil); err != nil {
		return docker.ErrImagePullFailed(ref, err)
	}
	return nil
}

func (c *Container) buildConfigs() (*dockercontainer.Config, *dockercontainer.HostConfig, *network.NetworkingConfig, error) {
	spec := c.spec
	opts := spec.Options

	exposed, bindings, err := spec.portBindings()
	if err != nil {
		return nil, nil, nil, err
	}

	cfg := &dockercontainer.Config{
		Image:        spec.Image(),
		Env:          spec.envList(),
		ExposedPorts: exposed,
		Cmd:          opts.Cmd,
		Entrypoint:   opts.Entrypoint,
		User:         opts.User,
		WorkingDir:   opts.WorkingDir,
		Tty:          opts.Tty,
		Labels: docker.MergeLabels(c.orch.labels, opts.Labels, map[string]string{
			docker.LabelRunID: spec.RunID,
			docker.LabelImage: spec.Image(),
		}),
	}

	hostCfg := &dockercontainer.HostConfig{
		Binds:        spec.bindList(),
		PortBindings: bindings,
		NetworkMode:  dockercontainer.NetworkMode(c.orch.network.Name()),
		ExtraHosts:   opts.ExtraHosts,
		CapAdd:       opts.CapAdd,
		Privileged:   opts.Privileged,
	}
	if opts.Memory != "" {
		mem, err := units.RAMInBytes(opts.Memory)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid memory %q: %w", opts.Memory, err)
		}
		hostCfg.Memory = mem
	}
	if opts.ShmSize != "" {
		shm, err := units.RAMInBytes(opts.ShmSize)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid shm size %q: %w", opts.ShmSize, err)
		}
		hostCfg.ShmSize = shm
	}

	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			c.orch.network.Name(): {
				Aliases: append([]string{spec.Alias()}, opts.Aliases...),
			},
		},
	}
	return cfg, hostCfg, netCfg, nil
}

// Stop stops the container, captures its final status, logs and optionally
// its filesystem, then removes it. Capture failures are logged; only a
// removal failure is returned. The handle is stopped afterwards either way.
func (c *Container) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return fmt.Errorf("%s: %w", c.Name(), ErrNotRunning)
	}

	log := c.logger()
	api := c.orch.api
	id := c.id
	var captureErrs []error

	timeout := int(c.orch.stopTimeout.Seconds())
	if err := api.ContainerStop(ctx, id, dockercontainer.StopOptions{Timeout: &timeout}); err != nil {
		captureErrs = append(captureErrs, fmt.Errorf("stop: %w", err))
	}

	status := UnknownStatus
	if info, err := api.ContainerInspect(ctx, id); err != nil {
		captureErrs = append(captureErrs, fmt.Errorf("inspect: %w", err))
	} else if info.ContainerJSONBase != nil && info.State != nil {
		status = string(info.State.Status)
	}

	var stdout, stderr io.Reader
	if c.orch.exportLogs {
		var outBuf, errBuf bytes.Buffer
		if err := docker.CopyLogs(ctx, api, id, docker.Stdout, c.spec.Options.Tty, &outBuf); err != nil {
			captureErrs = append(captureErrs, err)
		}
		if err := docker.CopyLogs(ctx, api, id, docker.Stderr, c.spec.Options.Tty, &errBuf); err != nil {
			captureErrs = append(captureErrs, err)
		}
		stdout, stderr = &outBuf, &errBuf
	}

	var tarball io.ReadCloser
	if c.orch.exportFS {
		rc, err := api.ContainerExport(ctx, id)
		if err != nil {
			captureErrs = append(captureErrs, fmt.Errorf("export: %w", err))
		} else {
			tarball = rc
		}
	}

	var tarReader io.Reader
	if tarball != nil {
		tarReader = tarball
	}
	if err := c.orch.exporter.WriteShutdownArtifacts(c.spec.RunID, status, stdout, stderr, tarReader); err != nil {
		captureErrs = append(captureErrs, err)
	}
	if tarball != nil {
		tarball.Close()
	}

	if err := errors.Join(captureErrs...); err != nil {
		log.Warn().Err(err).Msg("artifact capture incomplete")
	}

	c.state = Stopped
	c.id = ""
	if err := api.ContainerRemove(ctx, id, dockercontainer.RemoveOptions{Force: true}); err != nil && !cerrdefs.IsNotFound(err) {
		return docker.ErrContainerRemoveFailed(c.Name(), err)
	}
	log.Info().Str("status", status).Msg("container removed")
	return nil
}

// Wait blocks until the container exits and returns its exit code.
func (c *Container) Wait(ctx context.Context) (int64, error) {
	id := c.ID()
	if id == "" {
		return 0, fmt.Errorf("%s: %w", c.Name(), ErrNotRunning)
	}
	respCh, errCh := c.orch.api.ContainerWait(ctx, id, dockercontainer.WaitConditionNotRunning)
	select {
	case resp := <-respCh:
		if resp.Error != nil && resp.Error.Message != "" {
			return resp.StatusCode, fmt.Errorf("waiting for %s: %s", c.Name(), resp.Error.Message)
		}
		return resp.StatusCode, nil
	case err := <-errCh:
		return 0, fmt.Errorf("waiting for %s: %w", c.Name(), err)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Stdout returns the standard output the container has produced so far.
func (c *Container) Stdout(ctx context.Context) ([]byte, error) {
	id := c.ID()
	if id == "" {
		return nil, fmt.Errorf("%s: %w", c.Name(), ErrNotRunning)
	}
	var buf bytes.Buffer
	if err := docker.CopyLogs(ctx, c.orch.api, id, docker.Stdout, c.spec.Options.Tty, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
