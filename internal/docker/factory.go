package docker

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/docker/docker/client"
	"github.com/docker/go-connections/tlsconfig"

	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/logger"
	"github.com/schmitthub/dockercloud/internal/transport"
	"github.com/schmitthub/dockercloud/pkg/whail"
)

// FacadeFactory creates one ClientFacade per lifecycle test.
type FacadeFactory interface {
	CreateFacade(ctx context.Context, cfg config.EngineConfig) (ClientFacade, error)
}

// FacadeFactoryFunc adapts a function to FacadeFactory.
type FacadeFactoryFunc func(ctx context.Context, cfg config.EngineConfig) (ClientFacade, error)

func (f FacadeFactoryFunc) CreateFacade(ctx context.Context, cfg config.EngineConfig) (ClientFacade, error) {
	return f(ctx, cfg)
}

// EngineFactory connects to a real engine for every facade.
type EngineFactory struct {
	// Labels are applied to every container the facades create.
	Labels whail.LabelConfig
}

var _ FacadeFactory = EngineFactory{}

// CreateFacade dials the engine described by cfg and pings it.
func (f EngineFactory) CreateFacade(ctx context.Context, cfg config.EngineConfig) (ClientFacade, error) {
	engine, err := NewEngine(ctx, cfg, f.Labels)
	if err != nil {
		return nil, err
	}
	return NewFacade(engine), nil
}

// NewEngine builds a whail engine for cfg and verifies the connection.
func NewEngine(ctx context.Context, cfg config.EngineConfig, labels whail.LabelConfig) (*whail.Engine, error) {
	opts, err := ClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	return whail.NewEngine(ctx, EngineOptions(labels), opts...)
}

// ClientOptions translates an engine config into Docker SDK options.
//
// Unix sockets and named pipes are dialed through transport.DialTimed, so
// every response read is bounded by cfg.ReadTimeout. tcp engines use a plain
// HTTP transport whose response header wait is bounded the same way.
func ClientOptions(cfg config.EngineConfig) ([]client.Opt, error) {
	raw := cfg.URI
	if raw == "" {
		raw = transport.DefaultEngineURI()
	}
	u, err := transport.ParseEngineURI(raw, cfg.TLS.Enabled())
	if err != nil {
		return nil, err
	}

	var (
		opts []client.Opt
		dial func(ctx context.Context, _, _ string) (net.Conn, error)
	)
	switch u.Scheme {
	case transport.SchemeTCP:
		httpClient, err := tcpHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
		// WithHTTPClient must precede WithHost, which configures the transport.
		opts = append(opts, client.WithHTTPClient(httpClient))
		dial = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return transport.Dial(ctx, u, cfg.ConnectTimeout)
		}
	default:
		dial = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return transport.DialTimed(ctx, u, cfg.ConnectTimeout, cfg.ReadTimeout)
		}
	}
	// WithHost resets the dialer, so WithDialContext goes after it.
	opts = append(opts, client.WithHost(u.String()), client.WithDialContext(dial))

	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}

	logger.Debug().
		Str("engine", u.String()).
		Bool("tls", cfg.TLS.Enabled()).
		Dur("read_timeout", cfg.ReadTimeout).
		Msg("engine client configured")
	return opts, nil
}

func tcpHTTPClient(cfg config.EngineConfig) (*http.Client, error) {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}
	if cfg.TLS.Enabled() {
		tlsCfg, err := tlsconfig.Client(tlsconfig.Options{
			CAFile:             cfg.TLS.CA,
			CertFile:           cfg.TLS.Cert,
			KeyFile:            cfg.TLS.Key,
			InsecureSkipVerify: !cfg.TLS.Verify,
		})
		if err != nil {
			return nil, fmt.Errorf("loading engine TLS material: %w", err)
		}
		tr.TLSClientConfig = tlsCfg
	}
	return &http.Client{Transport: tr}, nil
}
