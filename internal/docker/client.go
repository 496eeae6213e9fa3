package docker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/logger"
	"github.com/schmitthub/dockercloud/pkg/whail"
)

// ErrInvalidSpec is returned when a container spec can't be turned into an
// engine request.
var ErrInvalidSpec = errors.New("invalid container spec")

// ClientFacade is the narrow engine surface the container test engine uses.
// One facade serves one test and is closed when the test is disposed.
type ClientFacade interface {
	Ping(ctx context.Context) (types.Ping, error)
	PullImage(ctx context.Context, ref string, creds *config.RegistryCredentials) error
	CreateAgentContainer(ctx context.Context, req CreateRequest) (CreatedContainer, error)
	StartAgentContainer(ctx context.Context, containerID string) error
	// ListActiveAgentContainers lists managed containers, running or not,
	// carrying every label in match.
	ListActiveAgentContainers(ctx context.Context, match map[string]string) ([]ContainerInfo, error)
	RemoveContainer(ctx context.Context, containerID string) error
	Close() error
}

// Facade implements ClientFacade on top of a whail engine.
type Facade struct {
	engine *whail.Engine
}

var _ ClientFacade = (*Facade)(nil)

// NewFacade wraps engine.
func NewFacade(engine *whail.Engine) *Facade {
	return &Facade{engine: engine}
}

func (f *Facade) Ping(ctx context.Context) (types.Ping, error) {
	return f.engine.Ping(ctx)
}

// PullImage pulls ref, authenticating with creds when given. Progress is
// written to the debug log.
func (f *Facade) PullImage(ctx context.Context, ref string, creds *config.RegistryCredentials) error {
	var opts image.PullOptions
	if creds != nil {
		auth, err := registry.EncodeAuthConfig(registry.AuthConfig{
			Username:      creds.Username,
			Password:      creds.Password,
			ServerAddress: creds.ServerAddress,
		})
		if err != nil {
			return fmt.Errorf("encoding registry credentials for %s: %w", creds, err)
		}
		opts.RegistryAuth = auth
	}

	logger.Debug().Str("image", ref).Msg("pulling image")
	w := newPullLogWriter(ref)
	err := f.engine.ImagePull(ctx, ref, opts, w)
	w.Close()
	return err
}

// CreateAgentContainer creates (but does not start) an agent container.
func (f *Facade) CreateAgentContainer(ctx context.Context, req CreateRequest) (CreatedContainer, error) {
	cfg, hostCfg, platform, err := buildContainerConfig(req)
	if err != nil {
		return CreatedContainer{}, err
	}

	name := req.Name
	if name == "" {
		name = ContainerName(req.Profile, req.InstanceID)
	}

	resp, err := f.engine.ContainerCreate(ctx, cfg, hostCfg, nil, platform, name)
	if err != nil {
		return CreatedContainer{}, err
	}
	for _, w := range resp.Warnings {
		logger.Warn().Str("container", logger.ShortID(resp.ID)).Msg(w)
	}

	logger.Debug().
		Str("container", logger.ShortID(resp.ID)).
		Str("name", name).
		Str("image", req.Image).
		Msg("agent container created")
	return CreatedContainer{ID: resp.ID, Name: name}, nil
}

func (f *Facade) StartAgentContainer(ctx context.Context, containerID string) error {
	return f.engine.ContainerStart(ctx, containerID, container.StartOptions{})
}

func (f *Facade) ListActiveAgentContainers(ctx context.Context, match map[string]string) ([]ContainerInfo, error) {
	list, err := f.engine.ContainerListByLabels(ctx, match, true)
	if err != nil {
		return nil, err
	}
	out := make([]ContainerInfo, 0, len(list))
	for _, s := range list {
		out = append(out, containerInfoFromSummary(s))
	}
	return out, nil
}

// RemoveContainer force-removes a managed container and its anonymous volumes.
func (f *Facade) RemoveContainer(ctx context.Context, containerID string) error {
	return f.engine.ContainerRemove(ctx, containerID, true)
}

func (f *Facade) Close() error {
	return f.engine.Close()
}

// IsNotFound reports whether err means the container or image does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var dErr *whail.DockerError
	if errors.As(err, &dErr) && dErr.Op == "find" {
		return true
	}
	return cerrdefs.IsNotFound(err)
}

func buildContainerConfig(req CreateRequest) (*container.Config, *container.HostConfig, *ocispec.Platform, error) {
	if strings.TrimSpace(req.Image) == "" {
		return nil, nil, nil, fmt.Errorf("%w: image is required", ErrInvalidSpec)
	}
	spec := req.Spec

	cfg := &container.Config{
		Image:      req.Image,
		Cmd:        spec.Cmd,
		Entrypoint: spec.Entrypoint,
		Env:        AgentEnv(req),
		Labels:     whail.MergeLabels(spec.Labels, AgentLabels(req)),
		User:       spec.User,
		WorkingDir: spec.WorkingDir,
	}
	hostCfg := &container.HostConfig{
		Binds:       spec.Binds,
		NetworkMode: container.NetworkMode(spec.NetworkMode),
		Privileged:  spec.Privileged,
	}

	if len(spec.Ports) > 0 {
		exposed, bindings, err := nat.ParsePortSpecs(spec.Ports)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: ports: %w", ErrInvalidSpec, err)
		}
		cfg.ExposedPorts = exposed
		hostCfg.PortBindings = bindings
	}

	if spec.Memory != "" {
		var mem MemBytes
		if err := mem.Set(spec.Memory); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: memory: %w", ErrInvalidSpec, err)
		}
		hostCfg.Memory = mem.Value()
	}

	if spec.CPUs != "" {
		var cpus NanoCPUs
		if err := cpus.Set(spec.CPUs); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: cpus: %w", ErrInvalidSpec, err)
		}
		hostCfg.NanoCPUs = cpus.Value()
	}

	var platform *ocispec.Platform
	if spec.Platform != "" {
		p, err := platforms.Parse(spec.Platform)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: platform: %w", ErrInvalidSpec, err)
		}
		platform = &p
	}

	return cfg, hostCfg, platform, nil
}

// pullLogWriter forwards rendered pull progress to the debug log, one line
// at a time.
type pullLogWriter struct {
	pw   *io.PipeWriter
	done chan struct{}
}

func newPullLogWriter(ref string) *pullLogWriter {
	pr, pw := io.Pipe()
	w := &pullLogWriter{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		sc := bufio.NewScanner(pr)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				logger.Debug().Str("image", ref).Msg(line)
			}
		}
		// Drain so writers never block after a scan error.
		_, _ = io.Copy(io.Discard, pr)
	}()
	return w
}

func (w *pullLogWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *pullLogWriter) Close() {
	w.pw.Close()
	<-w.done
}
