// Package iostreamstest provides test doubles for the iostreams package.
package iostreamstest

import (
	"bytes"
	"sync"

	"github.com/schmitthub/svcharness/internal/iostreams"
)

// TestIOStreams wraps IOStreams for testing with accessible buffers.
type TestIOStreams struct {
	*iostreams.IOStreams
	InBuf  *Buffer
	OutBuf *Buffer
	ErrBuf *Buffer
}

// New creates IOStreams backed by empty buffers.
func New() *TestIOStreams {
	in, out, errOut := &Buffer{}, &Buffer{}, &Buffer{}
	return &TestIOStreams{
		IOStreams: &iostreams.IOStreams{In: in, Out: out, ErrOut: errOut},
		InBuf:     in,
		OutBuf:    out,
		ErrBuf:    errOut,
	}
}

// Buffer is a bytes.Buffer safe for commands that write from goroutines.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *Buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Read(p)
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// SetInput replaces the buffer contents.
func (b *Buffer) SetInput(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
	b.buf.WriteString(s)
}
