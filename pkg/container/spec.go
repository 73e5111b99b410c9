// Package container starts service images on a shared bridge network and
// tears them down while capturing diagnostic artifacts.
package container

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
)

// Spec describes one container run. The orchestrator copies it on entry, so
// later changes by the caller have no effect on a started container.
type Spec struct {
	// Name is the logical service name; it doubles as the image name.
	Name string `json:"name" yaml:"name"`
	// Tag is the optional image tag.
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`
	// RunID disambiguates several runs of the same Name within one test.
	RunID string `json:"run_id" yaml:"run_id"`
	// Env maps variable names to values.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	// Volumes maps host paths to container paths.
	Volumes map[string]string `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	// Ports maps "<port>[/<proto>]" inside the container to a host port.
	Ports map[string]int `json:"ports,omitempty" yaml:"ports,omitempty"`
	// Options are extra runtime options.
	Options Options `json:"options,omitzero" yaml:"options,omitempty"`
}

// Options are runtime settings beyond env, volumes and ports.
type Options struct {
	Cmd        []string          `json:"cmd,omitempty" yaml:"cmd,omitempty"`
	Entrypoint []string          `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	User       string            `json:"user,omitempty" yaml:"user,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	Memory     string            `json:"memory,omitempty" yaml:"memory,omitempty"`
	ShmSize    string            `json:"shm_size,omitempty" yaml:"shm_size,omitempty"`
	ExtraHosts []string          `json:"extra_hosts,omitempty" yaml:"extra_hosts,omitempty"`
	CapAdd     []string          `json:"cap_add,omitempty" yaml:"cap_add,omitempty"`
	Privileged bool              `json:"privileged,omitempty" yaml:"privileged,omitempty"`
	Tty        bool              `json:"tty,omitempty" yaml:"tty,omitempty"`
	Labels     map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Aliases    []string          `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Sanitize replaces every character outside [0-9A-Za-z] with an underscore.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return r
		default:
			return '_'
		}
	}, s)
}

// Image returns the image reference, name[:tag].
func (s Spec) Image() string {
	if s.Tag == "" {
		return s.Name
	}
	return s.Name + ":" + s.Tag
}

// ContainerName returns the deterministic container name for this run.
func (s Spec) ContainerName() string {
	return Sanitize(s.Name) + s.RunID
}

// Alias returns the network alias sibling containers use to reach this one.
func (s Spec) Alias() string {
	return Sanitize(s.Name)
}

// NewRunID returns a short random run identifier.
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// clone deep-copies the maps and slices of s.
func (s Spec) clone() Spec {
	out := s
	out.Env = maps.Clone(s.Env)
	out.Volumes = maps.Clone(s.Volumes)
	out.Ports = maps.Clone(s.Ports)
	out.Options.Cmd = slices.Clone(s.Options.Cmd)
	out.Options.Entrypoint = slices.Clone(s.Options.Entrypoint)
	out.Options.ExtraHosts = slices.Clone(s.Options.ExtraHosts)
	out.Options.CapAdd = slices.Clone(s.Options.CapAdd)
	out.Options.Labels = maps.Clone(s.Options.Labels)
	out.Options.Aliases = slices.Clone(s.Options.Aliases)
	return out
}

// Validate reports specs that cannot be started.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("container spec: name is required")
	}
	if _, _, err := s.portBindings(); err != nil {
		return err
	}
	return nil
}

// portBinding is one resolved container-port to host-port mapping.
type portBinding struct {
	port nat.Port
	host int
}

// sortedPorts resolves Ports in a stable order.
func (s Spec) sortedPorts() ([]portBinding, error) {
	out := make([]portBinding, 0, len(s.Ports))
	for _, key := range slices.Sorted(maps.Keys(s.Ports)) {
		proto, port := nat.SplitProtoPort(key)
		p, err := nat.NewPort(proto, port)
		if err != nil {
			return nil, fmt.Errorf("container spec %s: invalid port %q: %w", s.Name, key, err)
		}
		host := s.Ports[key]
		if host <= 0 || host > 65535 {
			return nil, fmt.Errorf("container spec %s: invalid host port %d for %q", s.Name, host, key)
		}
		out = append(out, portBinding{port: p, host: host})
	}
	return out, nil
}

// portBindings converts Ports into the runtime's exposed-port set and bindings.
func (s Spec) portBindings() (nat.PortSet, nat.PortMap, error) {
	ports, err := s.sortedPorts()
	if err != nil {
		return nil, nil, err
	}
	exposed := make(nat.PortSet, len(ports))
	bindings := make(nat.PortMap, len(ports))
	for _, pb := range ports {
		exposed[pb.port] = struct{}{}
		bindings[pb.port] = append(bindings[pb.port], nat.PortBinding{HostPort: fmt.Sprint(pb.host)})
	}
	return exposed, bindings, nil
}

// envList renders Env as sorted KEY=VALUE pairs.
func (s Spec) envList() []string {
	out := make([]string, 0, len(s.Env))
	for _, k := range slices.Sorted(maps.Keys(s.Env)) {
		out = append(out, k+"="+s.Env[k])
	}
	return out
}

// bindList renders Volumes as sorted host:container pairs.
func (s Spec) bindList() []string {
	out := make([]string, 0, len(s.Volumes))
	for _, host := range slices.Sorted(maps.Keys(s.Volumes)) {
		out = append(out, host+":"+s.Volumes[host])
	}
	return out
}
