package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// Stream selects which container output stream to read.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// CopyLogs writes one output stream of a container to w. Only the selected
// stream is requested from the daemon. Non-TTY log payloads are multiplexed
// and are demultiplexed with stdcopy; TTY payloads are copied verbatim.
func CopyLogs(ctx context.Context, api APIClient, containerID string, stream Stream, tty bool, w io.Writer) error {
	rc, err := api.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: stream == Stdout,
		ShowStderr: stream == Stderr,
	})
	if err != nil {
		return fmt.Errorf("fetching %s logs for %s: %w", stream, ShortID(containerID), err)
	}
	defer rc.Close()

	if tty {
		_, err = io.Copy(w, rc)
	} else if stream == Stdout {
		_, err = stdcopy.StdCopy(w, io.Discard, rc)
	} else {
		_, err = stdcopy.StdCopy(io.Discard, w, rc)
	}
	if err != nil {
		return fmt.Errorf("reading %s logs for %s: %w", stream, ShortID(containerID), err)
	}
	return nil
}
