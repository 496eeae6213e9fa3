package transport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"runtime"
	"strconv"
	"strings"
)

// Scheme is an engine endpoint kind.
type Scheme string

const (
	SchemeTCP   Scheme = "tcp"
	SchemeUnix  Scheme = "unix"
	SchemeNpipe Scheme = "npipe"
)

const (
	// DefaultTCPPort is used for tcp:// URIs without a port.
	DefaultTCPPort = 2375
	// DefaultTLSPort is used for tcp:// URIs without a port when TLS is on.
	DefaultTLSPort = 2376

	npipePrefix = "//./pipe/"
)

// ErrInvalidURI is returned for malformed or unsupported engine URIs.
var ErrInvalidURI = errors.New("invalid engine URI")

// EngineURI is a parsed, validated engine endpoint.
type EngineURI struct {
	Scheme Scheme
	// Host and Port are set for tcp.
	Host string
	Port int
	// Path is the socket path (unix) or pipe path (npipe).
	Path string
}

// DefaultEngineURI returns the platform's local engine endpoint.
func DefaultEngineURI() string {
	if runtime.GOOS == "windows" {
		return "npipe:////./pipe/docker_engine"
	}
	return "unix:///var/run/docker.sock"
}

// ParseEngineURI validates raw. Accepted forms are tcp://host[:port],
// unix:///absolute/path and npipe:////./pipe/name. tcp URIs may not carry
// a path, query, fragment or user info.
func ParseEngineURI(raw string, tls bool) (EngineURI, error) {
	invalid := func(reason string) (EngineURI, error) {
		return EngineURI{}, fmt.Errorf("%w %q: %s", ErrInvalidURI, raw, reason)
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return invalid(err.Error())
	}
	if u.Opaque != "" {
		return invalid("expected scheme://")
	}
	if u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return invalid("query and fragment are not allowed")
	}
	if u.User != nil {
		return invalid("user info is not allowed")
	}

	switch Scheme(u.Scheme) {
	case SchemeTCP:
		if u.Host == "" || u.Hostname() == "" {
			return invalid("missing host")
		}
		if u.Path != "" || u.RawPath != "" {
			return invalid("path is not allowed")
		}
		port := DefaultTCPPort
		if tls {
			port = DefaultTLSPort
		}
		if p := u.Port(); p != "" {
			port, err = strconv.Atoi(p)
			if err != nil || port < 1 || port > 65535 {
				return invalid("port must be between 1 and 65535")
			}
		} else if strings.HasSuffix(u.Host, ":") {
			return invalid("empty port")
		}
		return EngineURI{Scheme: SchemeTCP, Host: u.Hostname(), Port: port}, nil

	case SchemeUnix:
		if u.Host != "" {
			return invalid("unix socket path must be absolute (unix:///path)")
		}
		if u.Path == "" || u.Path == "/" {
			return invalid("missing socket path")
		}
		return EngineURI{Scheme: SchemeUnix, Path: u.Path}, nil

	case SchemeNpipe:
		if u.Host != "" || !strings.HasPrefix(u.Path, npipePrefix) || len(u.Path) == len(npipePrefix) {
			return invalid("expected npipe:////./pipe/<name>")
		}
		return EngineURI{Scheme: SchemeNpipe, Path: u.Path}, nil

	case "":
		return invalid("missing scheme")
	default:
		return invalid("unsupported scheme " + u.Scheme)
	}
}

// Address returns the dial address: host:port for tcp, the path otherwise.
func (u EngineURI) Address() string {
	if u.Scheme == SchemeTCP {
		return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
	}
	return u.Path
}

// String returns the canonical URI, as accepted by the Docker client.
func (u EngineURI) String() string {
	switch u.Scheme {
	case SchemeTCP:
		return "tcp://" + u.Address()
	case SchemeNpipe:
		return "npipe://" + u.Path
	default:
		return string(u.Scheme) + "://" + u.Path
	}
}

// Local reports whether the endpoint is a unix socket or named pipe.
func (u EngineURI) Local() bool {
	return u.Scheme == SchemeUnix || u.Scheme == SchemeNpipe
}
