package service

import (
	"net/http"
	"sync"
	"time"
)

// RequestRecord is what Instrument keeps of a request.
type RequestRecord struct {
	Method     string
	Path       string
	RawQuery   string
	Header     http.Header
	Body       []byte
	RemoteAddr string
}

// ResponseRecord is what Instrument keeps of a response.
type ResponseRecord struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Invocation is one request handled by an instrumented handler.
type Invocation struct {
	Session  string
	Request  RequestRecord
	Response ResponseRecord
	At       time.Time
}

// Recorder is an append-only invocation log. Readers get copies.
type Recorder struct {
	mu      sync.Mutex
	session string
	entries []*Invocation
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Append adds inv to the log, stamping the current session.
func (r *Recorder) Append(inv Invocation) {
	r.open(inv)
}

// open appends inv and returns its slot for later response updates.
func (r *Recorder) open(inv Invocation) *Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.Session = r.session
	slot := &inv
	r.entries = append(r.entries, slot)
	return slot
}

// update replaces the response of an opened slot. A slot dropped by Reset
// is no longer visible to readers, so updating it is harmless.
func (r *Recorder) update(slot *Invocation, resp ResponseRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot.Response = resp
}

// Reset empties the log and starts a new session.
func (r *Recorder) Reset(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = session
	r.entries = nil
}

// Session returns the current session ID.
func (r *Recorder) Session() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Invocations returns a copy of the log.
func (r *Recorder) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Invocation, len(r.entries))
	for i, e := range r.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of recorded invocations.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
