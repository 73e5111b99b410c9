package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentRecordsInvocation(t *testing.T) {
	rec := NewRecorder()
	rec.Reset("session-1")

	var seenBody string
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		w.Header().Set("X-Handled", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "created")
	}), rec)

	req := httptest.NewRequest(http.MethodPost, "/accounts?verbose=1", strings.NewReader("account=10011002"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "account=10011002", seenBody, "handler still sees the body")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "created", w.Body.String())

	invs := rec.Invocations()
	require.Len(t, invs, 1)
	inv := invs[0]
	assert.Equal(t, "session-1", inv.Session)
	assert.Equal(t, http.MethodPost, inv.Request.Method)
	assert.Equal(t, "/accounts", inv.Request.Path)
	assert.Equal(t, "verbose=1", inv.Request.RawQuery)
	assert.Equal(t, "account=10011002", string(inv.Request.Body))
	assert.Equal(t, "application/x-www-form-urlencoded", inv.Request.Header.Get("Content-Type"))
	assert.Equal(t, http.StatusCreated, inv.Response.StatusCode)
	assert.Equal(t, "created", string(inv.Response.Body))
	assert.Equal(t, "yes", inv.Response.Header.Get("X-Handled"))
	assert.False(t, inv.At.IsZero())
}

func TestInstrumentImplicitStatus(t *testing.T) {
	rec := NewRecorder()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}), rec)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/hello", nil))

	invs := rec.Invocations()
	require.Len(t, invs, 1)
	assert.Equal(t, http.StatusOK, invs[0].Response.StatusCode)
	assert.Equal(t, "ok", string(invs[0].Response.Body))
}

func TestInstrumentNotFound(t *testing.T) {
	rec := NewRecorder()
	h := Instrument(http.NotFoundHandler(), rec)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	invs := rec.Invocations()
	require.Len(t, invs, 1)
	assert.Equal(t, http.StatusNotFound, invs[0].Response.StatusCode)
}

func TestRecorderCopiesAndResets(t *testing.T) {
	rec := NewRecorder()
	rec.Append(Invocation{Request: RequestRecord{Path: "/a"}})

	snapshot := rec.Invocations()
	snapshot[0].Request.Path = "/mutated"
	assert.Equal(t, "/a", rec.Invocations()[0].Request.Path)

	rec.Reset("next")
	assert.Zero(t, rec.Len())
	assert.Equal(t, "next", rec.Session())
}

func TestControlHandler(t *testing.T) {
	tests := []struct {
		method       string
		wantStatus   int
		wantBody     string
		wantShutdown bool
	}{
		{http.MethodGet, http.StatusOK, "ok", false},
		{http.MethodDelete, http.StatusOK, "bye!", true},
		{http.MethodPost, http.StatusMethodNotAllowed, "err", false},
		{http.MethodPut, http.StatusMethodNotAllowed, "err", false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			shutdown := false
			h := ControlHandler(func() { shutdown = true })
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, ControlPath, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
			assert.Equal(t, tt.wantShutdown, shutdown)
		})
	}
}

func TestInstrumentCommitsBeforeResponseLeaves(t *testing.T) {
	rec := NewRecorder()
	var atWrite, atFlush int
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2")
		_, _ = io.WriteString(w, "ok")
		atWrite = rec.Len()
		w.(http.Flusher).Flush()
		atFlush = rec.Len()
		require.Len(t, rec.Invocations(), 1)
		assert.Equal(t, "ok", string(rec.Invocations()[0].Response.Body))
	}), rec)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Equal(t, 1, atWrite)
	assert.Equal(t, 1, atFlush)
	invs := rec.Invocations()
	require.Len(t, invs, 1, "later writes update the same entry")
	assert.Equal(t, "2", invs[0].Response.Header.Get("Content-Length"))
}

func TestInstrumentReadFromKeepsBody(t *testing.T) {
	rec := NewRecorder()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(w, strings.NewReader("streamed"))
	}), rec)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/copy", nil))

	invs := rec.Invocations()
	require.Len(t, invs, 1)
	assert.Equal(t, "streamed", string(invs[0].Response.Body))
}
