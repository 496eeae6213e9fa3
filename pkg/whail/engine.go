// Package whail provides a reusable Docker isolation library ("whale jail").
// It wraps the Docker SDK with automatic label-based resource isolation,
// ensuring operations only affect containers managed by a specific application.
package whail

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// APIClient is the subset of the Docker SDK client the engine drives.
// *client.Client satisfies it; whailtest.FakeAPIClient fakes it.
type APIClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ClientVersion() string
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	Close() error
}

var _ APIClient = (*client.Client)(nil)

// EngineOptions configures the behavior of the Engine.
type EngineOptions struct {
	// LabelPrefix is the prefix for all managed labels (e.g., "com.myapp").
	// Used to construct the managed label key: "{LabelPrefix}.{ManagedLabel}".
	LabelPrefix string

	// ManagedLabel is the label key suffix that marks resources as managed.
	// Default: "managed".
	ManagedLabel string

	// Labels configures labels applied on create.
	Labels LabelConfig
}

// DefaultManagedLabel is the default label suffix for marking managed resources.
const DefaultManagedLabel = "managed"

// Engine wraps the Docker client with automatic label-based resource isolation.
// List operations inject the managed label filter; mutating operations refuse
// to touch containers without the managed label.
type Engine struct {
	APIClient
	options EngineOptions

	managedLabelKey   string // e.g., "com.myapp.managed"
	managedLabelValue string // always "true"
}

// NewEngine connects to the daemon described by clientOpts and verifies the
// connection with a ping.
func NewEngine(ctx context.Context, opts EngineOptions, clientOpts ...client.Opt) (*Engine, error) {
	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, ErrDockerNotRunning(err)
	}

	engine := NewFromExisting(cli, opts)
	if err := engine.HealthCheck(ctx); err != nil {
		cli.Close()
		return nil, err
	}
	return engine, nil
}

// NewFromExisting wraps an already constructed API client. No connection
// check is performed.
func NewFromExisting(c APIClient, opts EngineOptions) *Engine {
	if opts.ManagedLabel == "" {
		opts.ManagedLabel = DefaultManagedLabel
	}
	return &Engine{
		APIClient:         c,
		options:           opts,
		managedLabelKey:   opts.LabelPrefix + "." + opts.ManagedLabel,
		managedLabelValue: "true",
	}
}

// HealthCheck verifies the Docker daemon is reachable.
func (e *Engine) HealthCheck(ctx context.Context) error {
	if _, err := e.APIClient.Ping(ctx); err != nil {
		return ErrDockerNotRunning(err)
	}
	return nil
}

// Ping returns the daemon's negotiated API version.
func (e *Engine) Ping(ctx context.Context) (types.Ping, error) {
	p, err := e.APIClient.Ping(ctx)
	if err != nil {
		return types.Ping{}, ErrDockerNotRunning(err)
	}
	return p, nil
}

// injectManagedFilter adds the managed label filter to existing filters.
func (e *Engine) injectManagedFilter(existing filters.Args) filters.Args {
	if existing.Len() == 0 {
		existing = filters.NewArgs()
	}
	existing.Add("label", e.managedLabelKey+"="+e.managedLabelValue)
	return existing
}

// newManagedFilter creates a new filter with just the managed label.
func (e *Engine) newManagedFilter() filters.Args {
	return filters.NewArgs(
		filters.Arg("label", e.managedLabelKey+"="+e.managedLabelValue),
	)
}

func (e *Engine) managedLabels() map[string]string {
	return map[string]string{
		e.managedLabelKey: e.managedLabelValue,
	}
}

// containerLabels returns labels for a container, including the managed label.
// The managed label is applied last so callers cannot unset it.
func (e *Engine) containerLabels(extra ...map[string]string) map[string]string {
	all := append([]map[string]string{e.options.Labels.ContainerLabels()}, extra...)
	all = append(all, e.managedLabels())
	return MergeLabels(all...)
}

func (e *Engine) isManagedLabelPresent(labels map[string]string) bool {
	return labels[e.managedLabelKey] == e.managedLabelValue
}
