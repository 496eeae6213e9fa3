package transport

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnChannelOverPipe(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	ch := NewConnChannel(client)
	assert.True(t, ch.IsOpen())

	go func() {
		_, _ = server.Write([]byte("hello"))
	}()

	buf := make([]byte, 5)
	n, err := ch.ReadAsync(buf).Result()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	require.NoError(t, ch.Close())
	assert.False(t, ch.IsOpen())
	_, err = ch.ReadAsync(buf).Result()
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.NoError(t, ch.Close(), "close is idempotent")
}

func TestConnTimedReadAndDeadline(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn, err := NewConn(client, 0)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	_, err = conn.Read(make([]byte, 4))
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())

	require.NoError(t, conn.SetReadDeadline(time.Time{}))
	assert.Equal(t, time.Duration(0), conn.Stream().ReadTimeout())

	require.NoError(t, conn.SetDeadline(time.Now().Add(-time.Second)))
	_, err = conn.Read(make([]byte, 4))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestConnReadDeadlineIsAbsolute(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn, err := NewConn(client, 0)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	time.Sleep(350 * time.Millisecond)

	// The deadline has passed, so both reads fail without waiting again.
	for i := 0; i < 2; i++ {
		start := time.Now()
		_, err = conn.Read(make([]byte, 4))
		assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
		assert.Less(t, time.Since(start), 150*time.Millisecond)
	}

	go func() {
		_, _ = server.Write([]byte("ping"))
	}()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 4)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestConnCloseShutsDownStream(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn, err := NewConn(client, time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assert.True(t, conn.Stream().IsShutdown())
	_, err = conn.Read(make([]byte, 1))
	assert.Equal(t, io.EOF, err)
}

func TestDialTimedUnix(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "engine.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = c.Write([]byte("OK"))
		_ = c.Close()
	}()

	u, err := ParseEngineURI("unix://"+sock, false)
	require.NoError(t, err)

	conn, err := DialTimed(context.Background(), u, time.Second, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 2)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(buf))
}

func TestDialFailureIsIO(t *testing.T) {
	u, err := ParseEngineURI("unix://"+filepath.Join(t.TempDir(), "missing.sock"), false)
	require.NoError(t, err)

	_, err = Dial(context.Background(), u, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrIO)
}
