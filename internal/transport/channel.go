package transport

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
)

// ErrChannelClosed is returned by reads on a closed channel.
var ErrChannelClosed = errors.New("transport: channel closed")

// Future is the completion handle of one asynchronous read.
type Future struct {
	done chan struct{}
	once sync.Once
	n    int
	err  error
}

// NewFuture returns an incomplete future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// CompletedFuture returns a future that is already resolved.
func CompletedFuture(n int, err error) *Future {
	f := NewFuture()
	f.Complete(n, err)
	return f
}

// Complete resolves the future. Only the first call has an effect.
func (f *Future) Complete(n int, err error) {
	f.once.Do(func() {
		f.n, f.err = n, err
		close(f.done)
	})
}

// Done is closed once the read has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the read outcome. It blocks until the future completes.
func (f *Future) Result() (int, error) {
	<-f.done
	return f.n, f.err
}

// Channel is a completion-based byte channel: a read is issued and its
// outcome is delivered later through a Future.
type Channel interface {
	// ReadAsync starts a read into p. The caller must not touch p until
	// the returned future completes.
	ReadAsync(p []byte) *Future
	// Available reports how many bytes can be read without blocking.
	Available() int
	IsOpen() bool
	Close() error
}

// connChannel adapts a net.Conn (unix socket or named pipe) into a Channel.
// Reads are serialized; a read still in flight when its waiter gave up
// completes normally and the next read queues behind it.
type connChannel struct {
	conn   net.Conn
	mu     sync.Mutex
	br     *bufio.Reader
	closed atomic.Bool
}

// NewConnChannel wraps conn. The channel owns conn from here on.
func NewConnChannel(conn net.Conn) Channel {
	return &connChannel{conn: conn, br: bufio.NewReader(conn)}
}

func (c *connChannel) ReadAsync(p []byte) *Future {
	if c.closed.Load() {
		return CompletedFuture(0, ErrChannelClosed)
	}
	f := NewFuture()
	go func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed.Load() {
			f.Complete(0, ErrChannelClosed)
			return
		}
		n, err := c.br.Read(p)
		f.Complete(n, err)
	}()
	return f
}

// Available returns the buffered byte count, or 0 while a read holds the buffer.
func (c *connChannel) Available() int {
	if !c.mu.TryLock() {
		return 0
	}
	defer c.mu.Unlock()
	return c.br.Buffered()
}

func (c *connChannel) IsOpen() bool {
	return !c.closed.Load()
}

func (c *connChannel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}
