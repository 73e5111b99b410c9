// Package service hosts an HTTP handler in-process for tests: it adds a
// control route for health and shutdown and records every request the
// handler serves.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schmitthub/svcharness/internal/logger"
	"github.com/schmitthub/svcharness/internal/netutil"
	"github.com/schmitthub/svcharness/pkg/ready"
	"github.com/schmitthub/svcharness/pkg/rest"
)

const (
	DefaultPortMin      = 50000
	DefaultPortMax      = 60000
	DefaultHostname     = "services"
	DefaultStartTimeout = 5 * time.Second

	probeTimeout  = time.Second
	probeInterval = 100 * time.Millisecond
	drainTimeout  = 5 * time.Second
)

var (
	// ErrShutdownMismatch is returned by Stop when the control route answers
	// DELETE with something other than "bye!".
	ErrShutdownMismatch = errors.New("unexpected shutdown acknowledgement")
	// ErrHostClosed is returned when starting a host that has been stopped.
	ErrHostClosed = errors.New("service host closed")
	// ErrAlreadyStarted is returned when starting a running host.
	ErrAlreadyStarted = errors.New("service host already started")
	// ErrNotRunning is returned when stopping a host that is not running.
	ErrNotRunning = errors.New("service host not running")
)

type hostState int

const (
	hostIdle hostState = iota
	hostRunning
	hostClosed
)

// Host serves a handler on 0.0.0.0:<port> from a background goroutine
// between Start and Stop. It is single use.
type Host struct {
	handler      http.Handler
	port         int
	hostname     string
	startTimeout time.Duration
	log          *zerolog.Logger

	rec    *Recorder
	client *rest.Client

	mu       sync.Mutex
	state    hostState
	srv      *http.Server
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	// workerErr is written by the worker before done is closed.
	workerErr error
}

// Option configures a Host.
type Option func(*hostOptions)

type hostOptions struct {
	port         int
	portMin      int
	portMax      int
	hostname     string
	startTimeout time.Duration
	log          *zerolog.Logger
}

// WithPort binds an explicit port.
func WithPort(port int) Option {
	return func(o *hostOptions) { o.port = port }
}

// WithPortRange sets the range a random port is drawn from when no explicit
// port is given.
func WithPortRange(min, max int) Option {
	return func(o *hostOptions) { o.portMin, o.portMax = min, max }
}

// WithHostname sets the name sibling containers use to reach the host.
func WithHostname(name string) Option {
	return func(o *hostOptions) { o.hostname = name }
}

// WithStartTimeout bounds how long Start waits for the listener.
func WithStartTimeout(d time.Duration) Option {
	return func(o *hostOptions) { o.startTimeout = d }
}

// WithLogger sets the logger. The global logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(o *hostOptions) { o.log = &l }
}

// New returns a host for handler. The port is fixed here, so URL is valid
// before Start.
func New(handler http.Handler, opts ...Option) *Host {
	o := &hostOptions{
		portMin:      DefaultPortMin,
		portMax:      DefaultPortMax,
		hostname:     DefaultHostname,
		startTimeout: DefaultStartTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	port := o.port
	if port == 0 {
		port = netutil.RandomPort(o.portMin, o.portMax)
	}
	log := o.log
	if log == nil {
		log = &logger.Log
	}

	return &Host{
		handler:      handler,
		port:         port,
		hostname:     o.hostname,
		startTimeout: o.startTimeout,
		log:          log,
		rec:          NewRecorder(),
		client:       rest.New("localhost", port, rest.WithLogger(*log)),
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Port returns the bound port.
func (h *Host) Port() int {
	return h.port
}

// URL returns an address for path on the host. Sibling containers use the
// configured hostname; localhost selects the loopback name instead.
func (h *Host) URL(path string, localhost bool) string {
	host := h.hostname
	if localhost {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(h.port)) + "/" + strings.TrimLeft(path, "/")
}

// Client returns a REST client bound to the host over loopback.
func (h *Host) Client(opts ...rest.Option) *rest.Client {
	return rest.New("localhost", h.port, opts...)
}

// Invocations returns a copy of the requests served since Start returned.
// Control-route traffic is never included.
func (h *Host) Invocations() []Invocation {
	return h.rec.Invocations()
}

// SessionID identifies the current run; it changes on every Start.
func (h *Host) SessionID() string {
	return h.rec.Session()
}

// Done is closed when the listener exits, whether through the control
// route, Close or a serve failure.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

func (h *Host) signalShutdown() {
	h.stopOnce.Do(func() { close(h.shutdown) })
}

func (h *Host) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Start launches the listener and blocks until the control route answers
// "ok" or the start timeout passes. On success the invocation log is empty.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case hostRunning:
		return ErrAlreadyStarted
	case hostClosed:
		return ErrHostClosed
	}

	mux := http.NewServeMux()
	mux.Handle(ControlPath, ControlHandler(h.signalShutdown))
	mux.Handle("/", Instrument(h.handler, h.rec))

	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(h.port))
	h.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go h.serve(addr)

	probe := &controlProbe{host: h, client: rest.New("localhost", h.port, rest.WithTimeout(probeTimeout), rest.WithLogger(*h.log))}
	err := ready.WaitUntilReady(ctx, probe,
		ready.WithPath(ControlPath),
		ready.WithTimeout(h.startTimeout),
		ready.WithInterval(probeInterval),
		ready.WithLogger(*h.log),
	)
	if err != nil {
		h.signalShutdown()
		<-h.done
		h.state = hostClosed
		return fmt.Errorf("starting service host on port %d: %w", h.port, err)
	}

	session := uuid.NewString()
	h.rec.Reset(session)
	h.state = hostRunning
	h.log.Info().Int("port", h.port).Str("session", session).Msg("service host started")
	return nil
}

// serve is the worker goroutine.
func (h *Host) serve(addr string) {
	defer close(h.done)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		h.workerErr = fmt.Errorf("listening on %s: %w", addr, err)
		return
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- h.srv.Serve(ln) }()

	select {
	case <-h.shutdown:
		sctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := h.srv.Shutdown(sctx); err != nil {
			h.workerErr = fmt.Errorf("shutting down: %w", err)
		}
		<-serveErr
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			h.workerErr = err
		}
	}
}

// Stop asks the listener to shut down through the control route, checks the
// acknowledgement and waits for the worker to exit. After a failed Stop call
// Close to release the listener.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != hostRunning {
		if h.state == hostClosed {
			return ErrHostClosed
		}
		return ErrNotRunning
	}

	resp, err := h.client.Delete(ctx, ControlPath)
	if err != nil {
		return fmt.Errorf("stopping service host on port %d: %w", h.port, err)
	}
	if body := resp.Text(); body != ControlBye {
		return fmt.Errorf("stopping service host on port %d: %w: got %q", h.port, ErrShutdownMismatch, body)
	}

	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	h.state = hostClosed
	h.client.CloseIdleConnections()
	h.log.Info().Int("port", h.port).Str("session", h.rec.Session()).Msg("service host stopped")
	return h.workerErr
}

// Close shuts the listener down in-process and waits for the worker. It is
// safe to call at any time and more than once.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case hostIdle:
		h.state = hostClosed
		return nil
	case hostClosed:
		return nil
	}
	h.signalShutdown()
	<-h.done
	h.state = hostClosed
	h.client.CloseIdleConnections()
	return h.workerErr
}

// controlProbe adapts the control route to ready.Target. A worker that has
// already exited counts as not ready.
type controlProbe struct {
	host   *Host
	client *rest.Client
}

func (p *controlProbe) BaseURL() string {
	return p.client.BaseURL()
}

func (p *controlProbe) Get(ctx context.Context, path string, opts ...rest.RequestOption) (*rest.Response, error) {
	if p.host.exited() {
		if p.host.workerErr != nil {
			return nil, fmt.Errorf("listener exited: %w", p.host.workerErr)
		}
		return nil, errors.New("listener exited")
	}
	resp, err := p.client.Get(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	if resp.Text() != ControlOK {
		return nil, fmt.Errorf("control route answered %q", resp.Text())
	}
	return resp, nil
}
