// Package rest is a small HTTP client bound to one base URL. Verbs fail with
// a *BadResponseError on status 300 and above unless told otherwise.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/schmitthub/svcharness/internal/logger"
)

// ContentType is a request body media type.
type ContentType string

const (
	ContentTypeText   ContentType = "text/plain"
	ContentTypeJSON   ContentType = "application/json"
	ContentTypeBinary ContentType = "application/octet-stream"
)

// Client issues requests against one base URL. It is safe for concurrent use
// and keeps one connection pool for its lifetime. It never retries.
type Client struct {
	base string
	http *http.Client
	log  *zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request. There is no timeout by default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithLogger sets the logger. The global logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = &l }
}

// New returns a client for http://host:port.
func New(host string, port int, opts ...Option) *Client {
	return NewFromURL("http://"+net.JoinHostPort(host, strconv.Itoa(port)), opts...)
}

// NewFromURL returns a client for an arbitrary base URL. Trailing slashes
// are dropped.
func NewFromURL(base string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) logger() *zerolog.Logger {
	if c.log != nil {
		return c.log
	}
	return &logger.Log
}

// BaseURL returns the base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base
}

func (c *Client) String() string {
	return "rest.Client(" + c.base + ")"
}

// URL joins the base URL and path with exactly one slash.
func (c *Client) URL(path string) string {
	if path == "" {
		return c.base
	}
	return c.base + "/" + strings.TrimLeft(path, "/")
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

// Post issues a POST request. The body defaults to JSON; see Do.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

// Put issues a PUT request. The body defaults to JSON; see Do.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// Do issues a request and reads the whole response body. A []byte, string
// or io.Reader body is sent as is; any other non-nil body is JSON-encoded.
// Requests with a body default to ContentTypeJSON. Unless AllowErrors is
// given, a status of 300 or above returns the response together with a
// *BadResponseError.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	ro := newRequestOptions(opts)
	resp, err := c.send(ctx, method, path, body, ro)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading body: %w", method, path, err)
	}
	out := &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       data,
	}
	if !ro.allowErrors && resp.StatusCode >= 300 {
		return out, &BadResponseError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       data,
		}
	}
	return out, nil
}

// DownloadGet issues a GET and streams the body into w. Any status of 300
// or above is an error and nothing is written.
func (c *Client) DownloadGet(ctx context.Context, path string, w io.Writer, opts ...RequestOption) (int64, error) {
	ro := newRequestOptions(opts)
	resp, err := c.send(ctx, http.MethodGet, path, nil, ro)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, &BadResponseError{
			Method:     http.MethodGet,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       data,
		}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("GET %s: streaming body: %w", path, err)
	}
	return n, nil
}

// maxErrorBody bounds how much of a failed download is kept for the error.
const maxErrorBody = 64 << 10

func (c *Client) send(ctx context.Context, method, path string, body any, ro *requestOptions) (*http.Response, error) {
	reader, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	target := c.URL(path)
	if len(ro.query) > 0 {
		target += "?" + ro.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if body != nil {
		ct := ro.contentType
		if ct == "" {
			ct = ContentTypeJSON
		}
		req.Header.Set("Content-Type", string(ct))
	} else if ro.contentType != "" {
		req.Header.Set("Content-Type", string(ro.contentType))
	}
	for k, vs := range ro.header {
		req.Header[k] = slices.Clone(vs)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger().Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger().Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request")
	return resp, nil
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	case io.Reader:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding JSON body: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	allowErrors bool
	contentType ContentType
	header      http.Header
	query       url.Values
}

func newRequestOptions(opts []RequestOption) *requestOptions {
	ro := &requestOptions{header: http.Header{}}
	for _, opt := range opts {
		opt(ro)
	}
	return ro
}

// AllowErrors returns responses with status 300 and above without an error.
func AllowErrors() RequestOption {
	return func(ro *requestOptions) { ro.allowErrors = true }
}

// WithContentType sets the request Content-Type.
func WithContentType(ct ContentType) RequestOption {
	return func(ro *requestOptions) { ro.contentType = ct }
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(ro *requestOptions) { ro.header.Add(key, value) }
}

// WithQuery sets the query string.
func WithQuery(q url.Values) RequestOption {
	return func(ro *requestOptions) { ro.query = q }
}
