package container

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"al.essio.dev/pkg/shellescape"
)

// ShutdownPrefix names the per-run files written after a container stops.
const ShutdownPrefix = "container"

// Artifact file extensions.
const (
	ExtSpec    = ".json"
	ExtCommand = ".cmd"
	ExtStatus  = ".status"
	ExtStdout  = ".stdout"
	ExtStderr  = ".stderr"
	ExtTar     = ".tar"
)

// Exporter writes the per-run artifact bundle into one directory. The files
// are a debugging aid and are never read back.
type Exporter struct {
	dir string
}

// NewExporter returns an exporter writing into dir. The directory is created
// on first write.
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// Dir returns the artifact directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// SpecPath returns the path of the spec snapshot for spec.
func (e *Exporter) SpecPath(spec Spec) string {
	return filepath.Join(e.dir, spec.ContainerName()+ExtSpec)
}

// CommandPath returns the path of the rerun command for spec.
func (e *Exporter) CommandPath(spec Spec) string {
	return filepath.Join(e.dir, spec.ContainerName()+ExtCommand)
}

// ShutdownPath returns the path of a shutdown artifact for runID.
func (e *Exporter) ShutdownPath(runID, ext string) string {
	return filepath.Join(e.dir, ShutdownPrefix+runID+ext)
}

// specSnapshot is the JSON shape of the spec artifact.
type specSnapshot struct {
	Image string `json:"image"`
	Spec
}

// WriteStartupArtifacts writes the spec snapshot and the rerun command.
func (e *Exporter) WriteStartupArtifacts(spec Spec) error {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	data, err := json.MarshalIndent(specSnapshot{Image: spec.Image(), Spec: spec}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding spec for %s: %w", spec.ContainerName(), err)
	}
	if err := os.WriteFile(e.SpecPath(spec), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing spec artifact: %w", err)
	}

	cmd, err := RerunCommand(spec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(e.CommandPath(spec), []byte(cmd+"\n"), 0644); err != nil {
		return fmt.Errorf("writing command artifact: %w", err)
	}
	return nil
}

// WriteShutdownArtifacts writes the final status and, for each non-nil
// reader, the stdout, stderr and filesystem tarball artifacts. Readers are
// streamed to disk.
func (e *Exporter) WriteShutdownArtifacts(runID, status string, stdout, stderr, tarball io.Reader) error {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	var errs []error
	if err := os.WriteFile(e.ShutdownPath(runID, ExtStatus), []byte(status), 0644); err != nil {
		errs = append(errs, fmt.Errorf("writing status artifact: %w", err))
	}
	for _, a := range []struct {
		ext string
		r   io.Reader
	}{
		{ExtStdout, stdout},
		{ExtStderr, stderr},
		{ExtTar, tarball},
	} {
		if a.r == nil {
			continue
		}
		if err := writeStream(e.ShutdownPath(runID, a.ext), a.r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeStream(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// RerunCommand returns a shell command line that reproduces spec by hand.
// It uses host networking, so published ports are informational.
func RerunCommand(spec Spec) (string, error) {
	args := []string{"docker", "run", "--network", "host"}
	for _, kv := range spec.envList() {
		args = append(args, "-e", kv)
	}
	for _, bind := range spec.bindList() {
		args = append(args, "-v", bind)
	}
	ports, err := spec.sortedPorts()
	if err != nil {
		return "", err
	}
	for _, pb := range ports {
		args = append(args, "-p", fmt.Sprintf("%d:%s", pb.host, pb.port))
	}
	args = append(args, spec.Image())
	return shellescape.QuoteCommand(args), nil
}
