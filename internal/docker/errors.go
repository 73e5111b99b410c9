package docker

import (
	"fmt"
	"strings"
)

// DockerError represents a user-friendly Docker error with remediation steps.
// It wraps underlying Docker SDK errors with context and actionable guidance.
type DockerError struct {
	Op        string   // Operation that failed (e.g., "pull", "create", "remove")
	Err       error    // Underlying error
	Message   string   // Human-readable message
	NextSteps []string // Suggested remediation steps
}

func (e *DockerError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// FormatUserError formats the error for display to users with next steps.
func (e *DockerError) FormatUserError() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", e.Message))

	if e.Err != nil {
		sb.WriteString(fmt.Sprintf("  Details: %s\n", e.Err.Error()))
	}

	if len(e.NextSteps) > 0 {
		sb.WriteString("\nNext Steps:\n")
		for i, step := range e.NextSteps {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, step))
		}
	}

	return sb.String()
}

// ErrDockerNotRunning returns an error for when Docker daemon is not accessible.
func ErrDockerNotRunning(err error) *DockerError {
	return &DockerError{
		Op:      "connect",
		Err:     err,
		Message: "Cannot connect to Docker daemon",
		NextSteps: []string{
			"Ensure Docker is installed",
			"Start Docker Desktop (macOS/Windows) or run 'sudo systemctl start docker' (Linux)",
			"Check if Docker socket is accessible: ls -la /var/run/docker.sock",
		},
	}
}

// ErrImageInspectFailed returns an error for an image lookup failure other than not-found.
func ErrImageInspectFailed(image string, err error) *DockerError {
	return &DockerError{
		Op:      "inspect",
		Err:     err,
		Message: fmt.Sprintf("Failed to look up image '%s'", image),
		NextSteps: []string{
			"Review Docker daemon logs for details",
		},
	}
}

// ErrImagePullFailed returns an error for when an image cannot be pulled.
func ErrImagePullFailed(image string, err error) *DockerError {
	return &DockerError{
		Op:      "pull",
		Err:     err,
		Message: fmt.Sprintf("Failed to pull image '%s'", image),
		NextSteps: []string{
			"Check the image name and tag are correct",
			"Build the image locally if it is not published",
			"Try pulling manually: docker pull " + image,
		},
	}
}

// ErrContainerCreateFailed returns an error for when container creation fails.
func ErrContainerCreateFailed(name string, err error) *DockerError {
	return &DockerError{
		Op:      "create",
		Err:     err,
		Message: fmt.Sprintf("Failed to create container '%s'", name),
		NextSteps: []string{
			"Verify volume mount paths are valid",
			"Check for port conflicts on the published host ports",
			"Rerun the generated .cmd artifact to reproduce",
		},
	}
}

// ErrContainerStartFailed returns an error for when a container fails to start.
func ErrContainerStartFailed(name string, err error) *DockerError {
	return &DockerError{
		Op:      "start",
		Err:     err,
		Message: fmt.Sprintf("Failed to start container '%s'", name),
		NextSteps: []string{
			"Check container logs: docker logs " + name,
			"Check for port conflicts",
			"Rerun the generated .cmd artifact to reproduce",
		},
	}
}

// ErrContainerRemoveFailed returns an error for when container removal fails.
func ErrContainerRemoveFailed(name string, err error) *DockerError {
	return &DockerError{
		Op:      "remove",
		Err:     err,
		Message: fmt.Sprintf("Failed to remove container '%s'", name),
		NextSteps: []string{
			"Remove it manually: docker rm -f " + name,
			"Review Docker daemon logs for details",
		},
	}
}

// ErrNetworkCreateFailed returns an error for when network creation fails.
func ErrNetworkCreateFailed(name string, err error) *DockerError {
	return &DockerError{
		Op:      "network_create",
		Err:     err,
		Message: fmt.Sprintf("Failed to create network '%s'", name),
		NextSteps: []string{
			"Check existing networks: docker network ls",
			"Remove unused networks: docker network prune",
		},
	}
}
