package transport

import (
	"net"
	"sync/atomic"
	"time"
)

// Conn is a net.Conn whose reads go through a TimedStream. Writes and
// addresses come straight from the wrapped connection.
type Conn struct {
	net.Conn
	stream      *TimedStream
	baseTimeout time.Duration
	deadline    atomic.Pointer[time.Time]
}

// NewConn wraps raw. readTimeout is restored whenever the read deadline is cleared.
func NewConn(raw net.Conn, readTimeout time.Duration) (*Conn, error) {
	stream, err := NewTimedStream(NewConnChannel(raw), readTimeout)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: raw, stream: stream, baseTimeout: readTimeout}, nil
}

// Stream exposes the underlying timed stream.
func (c *Conn) Stream() *TimedStream {
	return c.stream
}

// Read honours the read deadline, if one is set, by shrinking the stream's
// timeout to the time left before it.
func (c *Conn) Read(p []byte) (int, error) {
	if dl := c.deadline.Load(); dl != nil {
		left := time.Until(*dl)
		if left <= 0 {
			return 0, &TimeoutError{}
		}
		if err := c.stream.SetReadTimeout(left); err != nil {
			return 0, err
		}
	}
	return c.stream.Read(p)
}

func (c *Conn) Close() error {
	c.stream.Shutdown()
	return c.stream.Close()
}

// SetReadDeadline sets an absolute deadline for this and later reads. A
// zero time clears it and restores the configured timeout.
func (c *Conn) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		c.deadline.Store(nil)
		return c.stream.SetReadTimeout(c.baseTimeout)
	}
	c.deadline.Store(&t)
	return nil
}

func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.Conn.SetWriteDeadline(t)
}
