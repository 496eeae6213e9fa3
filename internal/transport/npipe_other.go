//go:build !windows

package transport

import (
	"context"
	"errors"
	"net"
)

var errPipeUnsupported = errors.New("named pipes are only supported on windows")

func dialPipe(_ context.Context, _ string) (net.Conn, error) {
	return nil, errPipeUnsupported
}
