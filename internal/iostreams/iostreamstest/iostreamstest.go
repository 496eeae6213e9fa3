// Package iostreamstest provides test doubles for the iostreams package.
package iostreamstest

import (
	"bytes"
	"sync"

	"github.com/schmitthub/dockercloud/internal/iostreams"
)

// New creates IOStreams for testing: non-interactive, colors disabled.
func New() *TestIOStreams {
	in, out, errOut := &testBuffer{}, &testBuffer{}, &testBuffer{}
	ios := &iostreams.IOStreams{In: in, Out: out, ErrOut: errOut}
	ios.SetColorEnabled(false)
	return &TestIOStreams{IOStreams: ios, InBuf: in, OutBuf: out, ErrBuf: errOut}
}

// TestIOStreams wraps IOStreams with accessible buffers.
type TestIOStreams struct {
	*iostreams.IOStreams
	InBuf  *testBuffer
	OutBuf *testBuffer
	ErrBuf *testBuffer
}

// testBuffer is a goroutine-safe bytes.Buffer; command output may be written
// from listener goroutines.
type testBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *testBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Read(p)
}

func (b *testBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *testBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *testBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
