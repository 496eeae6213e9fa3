package dockertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/docker/docker/api/types"

	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/docker"
)

// FakeFacade is a function-field fake of docker.ClientFacade. Unset Fn
// fields panic, except CloseFn which defaults to a no-op.
type FakeFacade struct {
	mu    sync.Mutex
	Calls []string

	PingFn                      func(ctx context.Context) (types.Ping, error)
	PullImageFn                 func(ctx context.Context, ref string, creds *config.RegistryCredentials) error
	CreateAgentContainerFn      func(ctx context.Context, req docker.CreateRequest) (docker.CreatedContainer, error)
	StartAgentContainerFn       func(ctx context.Context, containerID string) error
	ListActiveAgentContainersFn func(ctx context.Context, match map[string]string) ([]docker.ContainerInfo, error)
	RemoveContainerFn           func(ctx context.Context, containerID string) error
	CloseFn                     func() error
}

var _ docker.ClientFacade = (*FakeFacade)(nil)

func (f *FakeFacade) record(method string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, method)
	f.mu.Unlock()
}

func notImplemented(method string) {
	panic(fmt.Sprintf("not implemented: %s - set %sFn on FakeFacade", method, method))
}

// CallCount returns how many times method was invoked.
func (f *FakeFacade) CallCount(method string) int {
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

func (f *FakeFacade) Ping(ctx context.Context) (types.Ping, error) {
	if f.PingFn == nil {
		notImplemented("Ping")
	}
	f.record("Ping")
	return f.PingFn(ctx)
}

func (f *FakeFacade) PullImage(ctx context.Context, ref string, creds *config.RegistryCredentials) error {
	if f.PullImageFn == nil {
		notImplemented("PullImage")
	}
	f.record("PullImage")
	return f.PullImageFn(ctx, ref, creds)
}

func (f *FakeFacade) CreateAgentContainer(ctx context.Context, req docker.CreateRequest) (docker.CreatedContainer, error) {
	if f.CreateAgentContainerFn == nil {
		notImplemented("CreateAgentContainer")
	}
	f.record("CreateAgentContainer")
	return f.CreateAgentContainerFn(ctx, req)
}

func (f *FakeFacade) StartAgentContainer(ctx context.Context, containerID string) error {
	if f.StartAgentContainerFn == nil {
		notImplemented("StartAgentContainer")
	}
	f.record("StartAgentContainer")
	return f.StartAgentContainerFn(ctx, containerID)
}

func (f *FakeFacade) ListActiveAgentContainers(ctx context.Context, match map[string]string) ([]docker.ContainerInfo, error) {
	if f.ListActiveAgentContainersFn == nil {
		notImplemented("ListActiveAgentContainers")
	}
	f.record("ListActiveAgentContainers")
	return f.ListActiveAgentContainersFn(ctx, match)
}

func (f *FakeFacade) RemoveContainer(ctx context.Context, containerID string) error {
	if f.RemoveContainerFn == nil {
		notImplemented("RemoveContainer")
	}
	f.record("RemoveContainer")
	return f.RemoveContainerFn(ctx, containerID)
}

func (f *FakeFacade) Close() error {
	f.record("Close")
	if f.CloseFn == nil {
		return nil
	}
	return f.CloseFn()
}

// Running returns a running ContainerInfo fixture.
func Running(id string) docker.ContainerInfo {
	return docker.ContainerInfo{ID: id, Name: "agent-" + id, State: "running", Running: true}
}

// Exited returns an exited ContainerInfo fixture.
func Exited(id string) docker.ContainerInfo {
	return docker.ContainerInfo{ID: id, Name: "agent-" + id, State: "exited"}
}
