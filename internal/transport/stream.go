package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

var (
	// ErrIO marks a connection-level read failure.
	ErrIO = errors.New("transport: i/o failure")
	// ErrOutOfRange is returned when offset/length do not fit the buffer.
	ErrOutOfRange = errors.New("transport: offset or length out of range")
	// ErrInvalidArgument is returned for a nil channel or a negative timeout.
	ErrInvalidArgument = errors.New("transport: invalid argument")
)

// TimeoutError reports a read that did not complete within the read timeout.
// It satisfies net.Error and matches os.ErrDeadlineExceeded, so HTTP
// clients treat it as a deadline rather than a broken connection. The
// underlying read is not cancelled; a retry queues behind it.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transport: read timed out after %s", e.After)
}

// Timeout is always true.
func (e *TimeoutError) Timeout() bool { return true }

// Temporary is always true: the caller may retry.
func (e *TimeoutError) Temporary() bool { return true }

func (e *TimeoutError) Is(target error) bool {
	return target == os.ErrDeadlineExceeded
}

// TimedStream turns a Channel into a blocking reader with a per-read timeout.
//
// A read is the one place this package blocks: it waits for the channel's
// future, forever when the timeout is zero and otherwise for at most the
// timeout. Shutdown is one way; once set, reads report io.EOF even if the
// channel still holds buffered bytes.
type TimedStream struct {
	ch       Channel
	timeout  atomic.Int64
	shutdown atomic.Bool
}

// NewTimedStream takes ownership of ch. A zero timeout waits forever.
func NewTimedStream(ch Channel, timeout time.Duration) (*TimedStream, error) {
	if ch == nil {
		return nil, fmt.Errorf("%w: nil channel", ErrInvalidArgument)
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: negative timeout %s", ErrInvalidArgument, timeout)
	}
	s := &TimedStream{ch: ch}
	s.timeout.Store(int64(timeout))
	return s, nil
}

// Read implements io.Reader.
func (s *TimedStream) Read(p []byte) (int, error) {
	return s.read(context.Background(), p, 0, len(p))
}

// ReadRange reads up to n bytes into b[off:off+n].
func (s *TimedStream) ReadRange(b []byte, off, n int) (int, error) {
	return s.read(context.Background(), b, off, n)
}

// ReadContext is Read with cancellation. A cancelled wait is an I/O failure.
func (s *TimedStream) ReadContext(ctx context.Context, p []byte) (int, error) {
	return s.read(ctx, p, 0, len(p))
}

func (s *TimedStream) read(ctx context.Context, b []byte, off, n int) (int, error) {
	if off < 0 || n < 0 || off > len(b) || n > len(b)-off {
		return 0, fmt.Errorf("%w: off=%d len=%d cap=%d", ErrOutOfRange, off, n, len(b))
	}
	if n == 0 {
		return 0, nil
	}
	if s.shutdown.Load() {
		return 0, io.EOF
	}

	fut := s.ch.ReadAsync(b[off : off+n])

	timeout := s.ReadTimeout()
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-fut.Done():
	case <-expired:
		return 0, &TimeoutError{After: timeout}
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w", ErrIO, ctx.Err())
	}

	read, err := fut.Result()
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return read, err
	default:
		return read, fmt.Errorf("%w: %w", ErrIO, err)
	}
}

// Available reports the channel's buffered byte count, or 0 after Shutdown.
func (s *TimedStream) Available() int {
	if s.shutdown.Load() {
		return 0
	}
	return s.ch.Available()
}

// Shutdown makes every later read return io.EOF. Reads already waiting are unaffected.
func (s *TimedStream) Shutdown() {
	s.shutdown.Store(true)
}

// IsShutdown reports whether Shutdown was called.
func (s *TimedStream) IsShutdown() bool {
	return s.shutdown.Load()
}

// Close releases the underlying channel.
func (s *TimedStream) Close() error {
	return s.ch.Close()
}

// ReadTimeout returns the current per-read timeout.
func (s *TimedStream) ReadTimeout() time.Duration {
	return time.Duration(s.timeout.Load())
}

// SetReadTimeout changes the timeout; it applies from the next read on.
func (s *TimedStream) SetReadTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidArgument, d)
	}
	s.timeout.Store(int64(d))
	return nil
}
