// Package ready polls an HTTP health endpoint until it answers or a
// deadline passes.
package ready

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/schmitthub/svcharness/internal/logger"
	"github.com/schmitthub/svcharness/pkg/rest"
)

const (
	DefaultPath     = "/status"
	DefaultTimeout  = 30 * time.Second
	DefaultInterval = time.Second
)

// ErrTimeout matches every *TimeoutError.
var ErrTimeout = errors.New("readiness timeout")

// Target is what WaitUntilReady polls. *rest.Client satisfies it.
type Target interface {
	Get(ctx context.Context, path string, opts ...rest.RequestOption) (*rest.Response, error)
	BaseURL() string
}

// TimeoutError reports a target that did not become ready in time.
type TimeoutError struct {
	BaseURL string
	Path    string
	Timeout time.Duration
	// Last is the error of the final attempt, if any.
	Last error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s%s not ready after %s", e.BaseURL, e.Path, e.Timeout)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.Last
}

type options struct {
	path     string
	timeout  time.Duration
	interval time.Duration
	log      *zerolog.Logger
}

// Option configures WaitUntilReady.
type Option func(*options)

// WithPath sets the probed path.
func WithPath(path string) Option {
	return func(o *options) { o.path = path }
}

// WithTimeout bounds the whole wait.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithInterval sets the fixed pause between attempts.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithLogger sets the logger. The global logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = &l }
}

// WaitUntilReady issues GET requests to the target until one succeeds.
// Every failure, including a non-2xx status, counts as not ready yet.
// Attempts are a fixed interval apart. When the timeout passes it returns a
// *TimeoutError; if ctx ends first it returns the context's error.
func WaitUntilReady(ctx context.Context, target Target, opts ...Option) error {
	o := &options{
		path:     DefaultPath,
		timeout:  DefaultTimeout,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	log := o.log
	if log == nil {
		log = &logger.Log
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var last error
	attempts := 0
	start := time.Now()
	_, err := backoff.Retry(waitCtx, func() (struct{}, error) {
		attempts++
		_, err := target.Get(waitCtx, o.path)
		last = err
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(o.interval)),
		backoff.WithMaxElapsedTime(o.timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug().Err(err).
				Str("target", target.BaseURL()).
				Str("path", o.path).
				Int("attempt", attempts).
				Msg("not ready yet")
		}),
	)
	if err == nil {
		log.Debug().
			Str("target", target.BaseURL()).
			Int("attempts", attempts).
			Dur("elapsed", time.Since(start)).
			Msg("ready")
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &TimeoutError{
		BaseURL: target.BaseURL(),
		Path:    o.path,
		Timeout: o.timeout,
		Last:    last,
	}
}
