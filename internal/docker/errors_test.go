package docker

import (
	"errors"
	"strings"
	"testing"
)

func TestDockerError(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrDockerNotRunning(cause)

	if !errors.Is(err, cause) {
		t.Error("DockerError should unwrap to its cause")
	}
	if got := err.Error(); got != "Cannot connect to Docker daemon: connection refused" {
		t.Errorf("Error() = %q", got)
	}

	var de *DockerError
	if !errors.As(error(err), &de) || de.Op != "connect" {
		t.Errorf("errors.As failed or wrong op: %+v", de)
	}
}

func TestDockerErrorWithoutCause(t *testing.T) {
	err := &DockerError{Message: "boom"}
	if got := err.Error(); got != "boom" {
		t.Errorf("Error() = %q, want %q", got, "boom")
	}
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  *DockerError
		want []string
	}{
		{
			name: "pull",
			err:  ErrImagePullFailed("engine:latest", errors.New("denied")),
			want: []string{"Failed to pull image 'engine:latest'", "Details: denied", "Next Steps:", "docker pull engine:latest"},
		},
		{
			name: "create",
			err:  ErrContainerCreateFailed("engine1", errors.New("port busy")),
			want: []string{"Failed to create container 'engine1'", "1. "},
		},
		{
			name: "network",
			err:  ErrNetworkCreateFailed("test-network", errors.New("exists")),
			want: []string{"Failed to create network 'test-network'", "docker network ls"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.err.FormatUserError()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("FormatUserError() missing %q in:\n%s", w, out)
				}
			}
		})
	}
}
