package harness

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/schmitthub/svcharness/internal/config"
	"github.com/schmitthub/svcharness/pkg/ready"
	"github.com/schmitthub/svcharness/pkg/service"
)

// StartService starts an embedded service host for handler with the
// configured port range, hostname and start timeout. Teardown stops it
// through the control route and then closes it in-process in case the
// remote shutdown did not go through.
func StartService(t *testing.T, handler http.Handler, opts ...service.Option) *service.Host {
	t.Helper()
	c, err := Config()
	if err != nil {
		t.Fatalf("loading harness config: %v", err)
	}
	base := []service.Option{
		service.WithPortRange(c.Ports.ServiceMin, c.Ports.ServiceMax),
		service.WithHostname(c.Service.Hostname),
		service.WithStartTimeout(c.Service.StartTimeout),
	}
	h := service.New(handler, append(base, opts...)...)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("starting service host: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.Stop(ctx); err != nil && !errors.Is(err, service.ErrHostClosed) {
			t.Errorf("stopping service host on port %d: %v", h.Port(), err)
		}
		_ = h.Close()
	})
	return h
}

// WaitReady blocks until target answers its readiness path, failing the test
// on timeout. The timeout honours SVCHARNESS_READY_TIMEOUT and CI.
func WaitReady(t *testing.T, target ready.Target, opts ...ready.Option) {
	t.Helper()
	c, err := Config()
	if err != nil {
		t.Fatalf("loading harness config: %v", err)
	}
	base := []ready.Option{
		ready.WithPath(c.Ready.Path),
		ready.WithInterval(c.Ready.Interval),
		ready.WithTimeout(config.ReadyTimeout(c)),
	}
	if err := ready.WaitUntilReady(context.Background(), target, append(base, opts...)...); err != nil {
		t.Fatalf("waiting for %s: %v", target.BaseURL(), err)
	}
}
