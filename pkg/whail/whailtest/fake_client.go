package whailtest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/schmitthub/dockercloud/pkg/whail"
)

// FakeAPIClient is a test double for whail.APIClient using the function-field
// pattern (Docker CLI convention). Each method has a corresponding Fn field.
// If the field is set, the fake delegates to it and records the call.
// If the field is nil, the call panics with "not implemented: MethodName".
type FakeAPIClient struct {
	// mu protects Calls from concurrent access.
	mu sync.Mutex

	// Calls records the method names invoked on this fake, in order.
	Calls []string

	PingFn             func(ctx context.Context) (types.Ping, error)
	ContainerCreateFn  func(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, name string) (container.CreateResponse, error)
	ContainerStartFn   func(ctx context.Context, containerID string, opts container.StartOptions) error
	ContainerRemoveFn  func(ctx context.Context, containerID string, opts container.RemoveOptions) error
	ContainerListFn    func(ctx context.Context, opts container.ListOptions) ([]container.Summary, error)
	ImagePullFn        func(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error)
	CloseFn            func() error
	ClientVersionValue string
}

var _ whail.APIClient = (*FakeAPIClient)(nil)

// record appends a method name to the call log (thread-safe).
func (f *FakeAPIClient) record(method string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, method)
	f.mu.Unlock()
}

// notImplemented panics with a descriptive message for unset function fields.
func notImplemented(method string) {
	panic(fmt.Sprintf("not implemented: %s - set %sFn on FakeAPIClient", method, method))
}

// Reset clears the Calls log.
func (f *FakeAPIClient) Reset() {
	f.mu.Lock()
	f.Calls = nil
	f.mu.Unlock()
}

// CallCount returns how many times method was invoked.
func (f *FakeAPIClient) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *FakeAPIClient) Ping(ctx context.Context) (types.Ping, error) {
	if f.PingFn == nil {
		notImplemented("Ping")
	}
	f.record("Ping")
	return f.PingFn(ctx)
}

func (f *FakeAPIClient) ClientVersion() string {
	if f.ClientVersionValue == "" {
		return "1.47"
	}
	return f.ClientVersionValue
}

func (f *FakeAPIClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, name string) (container.CreateResponse, error) {
	if f.ContainerCreateFn == nil {
		notImplemented("ContainerCreate")
	}
	f.record("ContainerCreate")
	return f.ContainerCreateFn(ctx, config, hostConfig, networkingConfig, platform, name)
}

func (f *FakeAPIClient) ContainerStart(ctx context.Context, containerID string, opts container.StartOptions) error {
	if f.ContainerStartFn == nil {
		notImplemented("ContainerStart")
	}
	f.record("ContainerStart")
	return f.ContainerStartFn(ctx, containerID, opts)
}

func (f *FakeAPIClient) ContainerRemove(ctx context.Context, containerID string, opts container.RemoveOptions) error {
	if f.ContainerRemoveFn == nil {
		notImplemented("ContainerRemove")
	}
	f.record("ContainerRemove")
	return f.ContainerRemoveFn(ctx, containerID, opts)
}

func (f *FakeAPIClient) ContainerList(ctx context.Context, opts container.ListOptions) ([]container.Summary, error) {
	if f.ContainerListFn == nil {
		notImplemented("ContainerList")
	}
	f.record("ContainerList")
	return f.ContainerListFn(ctx, opts)
}

func (f *FakeAPIClient) ImagePull(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error) {
	if f.ImagePullFn == nil {
		notImplemented("ImagePull")
	}
	f.record("ImagePull")
	return f.ImagePullFn(ctx, ref, opts)
}

func (f *FakeAPIClient) Close() error {
	f.record("Close")
	if f.CloseFn == nil {
		return nil
	}
	return f.CloseFn()
}
