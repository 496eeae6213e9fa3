package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Dial opens a raw connection to the engine endpoint. connectTimeout bounds
// connection establishment only; zero relies on ctx alone.
func Dial(ctx context.Context, u EngineURI, connectTimeout time.Duration) (net.Conn, error) {
	if connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	var (
		conn net.Conn
		err  error
	)
	switch u.Scheme {
	case SchemeTCP, SchemeUnix:
		var d net.Dialer
		network := string(u.Scheme)
		conn, err = d.DialContext(ctx, network, u.Address())
	case SchemeNpipe:
		conn, err = dialPipe(ctx, u.Path)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrIO, u, err)
	}
	return conn, nil
}

// DialTimed dials a local engine endpoint and wraps it so every read is
// bounded by readTimeout.
func DialTimed(ctx context.Context, u EngineURI, connectTimeout, readTimeout time.Duration) (net.Conn, error) {
	raw, err := Dial(ctx, u, connectTimeout)
	if err != nil {
		return nil, err
	}
	conn, err := NewConn(raw, readTimeout)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}
