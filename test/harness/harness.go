// Package harness binds the container orchestrator, readiness prober and
// embedded service host to testing.T so integration tests get scoped
// acquisition and guaranteed cleanup.
package harness

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/schmitthub/svcharness/internal/config"
	"github.com/schmitthub/svcharness/internal/docker"
	"github.com/schmitthub/svcharness/internal/logger"
	"github.com/schmitthub/svcharness/pkg/container"
)

// LockFileName is created in the artifacts directory to serialise runs.
const LockFileName = "integration-test.lock"

// cleanupTimeout bounds each sweep of leaked resources.
const cleanupTimeout = 30 * time.Second

var (
	cfgOnce sync.Once
	cfg     *config.Config
	cfgErr  error
)

// Config returns the harness configuration, loaded once per process from
// svcharness.yaml in the package directory (if present) and SVCHARNESS_*
// variables.
func Config() (*config.Config, error) {
	cfgOnce.Do(func() {
		cfg, cfgErr = config.Load("")
	})
	return cfg, cfgErr
}

// RunTestMain wraps testing.M.Run with cleanup of test-labeled containers
// and harness networks. It holds an exclusive file lock so concurrent
// integration runs on one machine do not remove each other's containers.
// Resources leaked by earlier (possibly killed) runs are removed before the
// tests start, and again after they finish, including on SIGINT/SIGTERM.
//
//	func TestMain(m *testing.M) { os.Exit(harness.RunTestMain(m)) }
func RunTestMain(m *testing.M) int {
	c, err := Config()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: loading harness config: %v\n", err)
		return 1
	}
	if err := logger.InitWithFile(c.Logging.Debug, c.LogsDir(), c.Logging.LoggerConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: file logging disabled: %v\n", err)
	}
	defer logger.CloseFileWriter()

	lock, err := acquireTestLock(c.Artifacts.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	defer func() { _ = lock.Unlock() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cleanupLeaked()
		_ = lock.Unlock()
		os.Exit(1)
	}()

	cleanupLeaked()

	code := m.Run()

	signal.Stop(sig)
	closeDockerClient()
	cleanupLeaked()

	return code
}

func acquireTestLock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create lock directory: %w", err)
	}
	path := filepath.Join(dir, LockFileName)
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("cannot lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another integration test run is active (lock: %s)", path)
	}
	return lock, nil
}

// cleanupLeaked removes test containers and prunes harness networks. It does
// nothing when Docker is unreachable.
func cleanupLeaked() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	api, err := docker.NewClient(ctx)
	if err != nil {
		return
	}
	defer api.Close()

	if _, err := container.RemoveLeaked(ctx, api, docker.TestFilter(), &logger.Log); err != nil {
		logger.Warn().Err(err).Msg("leaked container cleanup incomplete")
	}
	container.Prune(ctx, api, &logger.Log)
}
