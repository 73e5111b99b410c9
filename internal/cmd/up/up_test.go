package up

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/svcharness/internal/cmdutil"
	"github.com/schmitthub/svcharness/internal/config"
	"github.com/schmitthub/svcharness/internal/docker"
	"github.com/schmitthub/svcharness/internal/docker/dockertest"
	"github.com/schmitthub/svcharness/internal/iostreams/iostreamstest"
)

const specYAML = `containers:
  - name: rulesapp-engine
    run_id: abc
    ports:
      8080/tcp: 41234
  - name: rulesapp-compiler
    run_id: abc
`

func writeSpecFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "containers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newFixture(t *testing.T) (*cmdutil.Factory, *iostreamstest.TestIOStreams, *dockertest.FakeAPIClient, *dockertest.Lifecycle, *config.Config) {
	t.Helper()
	fake := dockertest.NewFakeAPIClient()
	lc := fake.SetupLifecycle()
	fake.NetworkInspectFn = func(context.Context, string, network.InspectOptions) (network.Inspect, error) {
		return network.Inspect{ID: "net-1"}, nil
	}
	fake.NetworksPruneFn = func(context.Context, filters.Args) (network.PruneReport, error) {
		return network.PruneReport{}, nil
	}

	cfg := config.DefaultConfig()
	cfg.Artifacts.Dir = t.TempDir()

	tio := iostreamstest.New()
	f := &cmdutil.Factory{
		IOStreams: tio.IOStreams,
		Config:    func() (*config.Config, error) { return cfg, nil },
		Client:    func(context.Context) (docker.APIClient, error) { return fake, nil },
	}
	return f, tio, fake, lc, cfg
}

func TestUpStartsAndStopsOnCancel(t *testing.T) {
	f, tio, fake, lc, cfg := newFixture(t)
	path := writeSpecFile(t, specYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := NewCmd(f)
	cmd.SetArgs([]string{path})
	errCh := make(chan error, 1)
	go func() { errCh <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(tio.ErrBuf.String(), "Press Ctrl+C")
	}, 5*time.Second, 10*time.Millisecond)

	out := tio.OutBuf.String()
	assert.Contains(t, out, "rulesapp_engineabc\trulesapp-engine\t41234->8080/tcp")
	assert.Contains(t, out, "rulesapp_compilerabc\trulesapp-compiler\t-")

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("up did not return after cancel")
	}

	// Stopped in reverse start order.
	assert.Equal(t, []string{"id-rulesapp_compilerabc", "id-rulesapp_engineabc"}, lc.Removed)
	fake.AssertCalled(t, "NetworksPrune")
	assert.FileExists(t, filepath.Join(cfg.Artifacts.Dir, "rulesapp_engineabc.cmd"))
	assert.FileExists(t, filepath.Join(cfg.Artifacts.Dir, "containerabc.status"))
}

func TestUpStartFailureTearsDownStarted(t *testing.T) {
	f, _, fake, lc, _ := newFixture(t)
	path := writeSpecFile(t, specYAML+`  - name: broken
    run_id: abc
    options:
      memory: lots
`)

	cmd := NewCmd(f)
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting brokenabc")

	assert.ElementsMatch(t, []string{"id-rulesapp_compilerabc", "id-rulesapp_engineabc"}, lc.Removed)
	fake.AssertCalledN(t, "ContainerStart", 2)
}

func TestUpRejectsEmptySpecFile(t *testing.T) {
	f, _, fake, _, _ := newFixture(t)
	path := writeSpecFile(t, "containers: []\n")

	cmd := NewCmd(f)
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lists no containers")
	fake.AssertNotCalled(t, "ContainerCreate")
}

func TestUpAssignsRunIDAndEnv(t *testing.T) {
	f, tio, _, lc, _ := newFixture(t)
	path := writeSpecFile(t, "containers:\n  - name: solo\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := NewCmd(f)
	cmd.SetArgs([]string{path, "-e", "LOG_LEVEL=debug", "--env", "MODE=test"})
	errCh := make(chan error, 1)
	go func() { errCh <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(tio.ErrBuf.String(), "Press Ctrl+C")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	require.Len(t, lc.Created, 1)
	assert.Equal(t, []string{"LOG_LEVEL=debug", "MODE=test"}, lc.Created[0].Config.Env)
	name := lc.Created[0].Name
	assert.True(t, strings.HasPrefix(name, "solo"))
	assert.Len(t, strings.TrimPrefix(name, "solo"), 8)
}

func TestFormatPorts(t *testing.T) {
	tests := []struct {
		name  string
		ports map[string]int
		want  string
	}{
		{"none", nil, "-"},
		{"one", map[string]int{"8080/tcp": 41000}, "41000->8080/tcp"},
		{"sorted", map[string]int{"9090/udp": 2, "8080": 1}, "1->8080,2->9090/udp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatPorts(tt.ports); got != tt.want {
				t.Errorf("formatPorts() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvVar(t *testing.T) {
	var e envVar
	require.NoError(t, e.Set("A=1"))
	require.NoError(t, e.Set("B=x=y"))
	assert.Equal(t, "A=1,B=x=y", e.String())
	assert.Error(t, e.Set("novalue"))
	assert.Error(t, e.Set("=1"))
}
