package whailtest

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/distribution/reference"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// FakeEngine is a small in-memory Docker daemon. It keeps a local image
// store, a remote registry and a container table, and hands out
// FakeAPIClients wired to that shared state. It is meant for end-to-end
// tests of code that creates, starts, lists and removes containers.
type FakeEngine struct {
	mu         sync.Mutex
	local      map[string]bool
	registry   map[string]bool
	containers map[string]*fakeContainer
	order      []string
	nextID     int
	clients    int
	closed     int
	pulls      []string
	creates    int

	// StartErr, when set, is returned by every ContainerStart.
	StartErr error
}

type fakeContainer struct {
	summary container.Summary
	env     []string
}

// NewFakeEngine returns an empty engine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		local:      make(map[string]bool),
		registry:   make(map[string]bool),
		containers: make(map[string]*fakeContainer),
	}
}

func normalize(ref string) string {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return ref
	}
	return reference.TagNameOnly(named).String()
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), cerrdefs.ErrNotFound)
}

// AddLocalImage makes ref available in the local image store only.
func (e *FakeEngine) AddLocalImage(ref string) {
	e.mu.Lock()
	e.local[normalize(ref)] = true
	e.mu.Unlock()
}

// AddRegistryImage makes ref pullable.
func (e *FakeEngine) AddRegistryImage(ref string) {
	e.mu.Lock()
	e.registry[normalize(ref)] = true
	e.mu.Unlock()
}

// Containers returns a snapshot of every container in creation order.
func (e *FakeEngine) Containers() []container.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]container.Summary, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, cloneSummary(e.containers[id].summary))
	}
	return out
}

// ContainerEnv returns the environment a container was created with.
func (e *FakeEngine) ContainerEnv(id string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.containers[id]; ok {
		return slices.Clone(c.env)
	}
	return nil
}

// ExitContainer marks a container as exited, as if its process died.
func (e *FakeEngine) ExitContainer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.containers[id]; ok {
		c.summary.State = "exited"
		c.summary.Status = "Exited (1) 1 second ago"
	}
}

// DeleteContainer removes a container behind the client's back.
func (e *FakeEngine) DeleteContainer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleteLocked(id)
}

// AddForeignContainer inserts a container created outside any client, with
// the given labels, in running state. It returns the container id.
func (e *FakeEngine) AddForeignContainer(labels map[string]string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.newIDLocked()
	e.containers[id] = &fakeContainer{summary: container.Summary{
		ID:     id,
		Names:  []string{"/foreign-" + id[:12]},
		State:  "running",
		Labels: maps.Clone(labels),
	}}
	e.order = append(e.order, id)
	return id
}

// ClientsCreated returns how many clients NewClient handed out.
func (e *FakeEngine) ClientsCreated() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clients
}

// ClosedCount returns how many clients were closed.
func (e *FakeEngine) ClosedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Pulls returns every pulled reference, in order.
func (e *FakeEngine) Pulls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.pulls)
}

// CreateCount returns how many ContainerCreate calls reached the engine.
func (e *FakeEngine) CreateCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.creates
}

func (e *FakeEngine) newIDLocked() string {
	e.nextID++
	return fmt.Sprintf("%064x", e.nextID)
}

func (e *FakeEngine) deleteLocked(id string) bool {
	if _, ok := e.containers[id]; !ok {
		return false
	}
	delete(e.containers, id)
	e.order = slices.DeleteFunc(e.order, func(s string) bool { return s == id })
	return true
}

func (e *FakeEngine) lookupLocked(idOrName string) (*fakeContainer, bool) {
	if c, ok := e.containers[idOrName]; ok {
		return c, true
	}
	for _, id := range e.order {
		c := e.containers[id]
		if strings.HasPrefix(id, idOrName) || slices.Contains(c.summary.Names, "/"+idOrName) {
			return c, true
		}
	}
	return nil, false
}

func cloneSummary(s container.Summary) container.Summary {
	s.Names = slices.Clone(s.Names)
	s.Labels = maps.Clone(s.Labels)
	return s
}

func labelsMatch(labels map[string]string, want []string) bool {
	for _, w := range want {
		k, v, hasValue := strings.Cut(w, "=")
		got, ok := labels[k]
		if !ok || hasValue && got != v {
			return false
		}
	}
	return true
}

// NewClient returns a FakeAPIClient backed by this engine's state.
func (e *FakeEngine) NewClient() *FakeAPIClient {
	e.mu.Lock()
	e.clients++
	e.mu.Unlock()

	f := &FakeAPIClient{}
	var closeOnce sync.Once

	f.PingFn = func(context.Context) (types.Ping, error) {
		return types.Ping{APIVersion: "1.47", OSType: "linux"}, nil
	}

	f.ImagePullFn = func(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		n := normalize(ref)
		e.pulls = append(e.pulls, n)
		if !e.registry[n] {
			return nil, notFound("pull access denied for %s, repository does not exist or may require 'docker login'", ref)
		}
		e.local[n] = true
		return PullStream(
			`{"status":"Pulling from library","id":"latest"}`,
			`{"status":"Status: Downloaded newer image for `+n+`"}`,
		), nil
	}

	f.ContainerCreateFn = func(_ context.Context, cfg *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.creates++
		n := normalize(cfg.Image)
		if !e.local[n] {
			return container.CreateResponse{}, notFound("No such image: %s", cfg.Image)
		}
		if name != "" {
			if _, taken := e.lookupLocked(name); taken {
				return container.CreateResponse{}, fmt.Errorf("container name %q is already in use: %w", name, cerrdefs.ErrConflict)
			}
		}
		id := e.newIDLocked()
		if name == "" {
			name = "fake_" + id[:12]
		}
		e.containers[id] = &fakeContainer{
			summary: container.Summary{
				ID:      id,
				Names:   []string{"/" + name},
				Image:   cfg.Image,
				State:   "created",
				Status:  "Created",
				Labels:  maps.Clone(cfg.Labels),
				Created: time.Now().Unix(),
			},
			env: slices.Clone(cfg.Env),
		}
		e.order = append(e.order, id)
		return container.CreateResponse{ID: id}, nil
	}

	f.ContainerStartFn = func(_ context.Context, id string, _ container.StartOptions) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.StartErr != nil {
			return e.StartErr
		}
		c, ok := e.lookupLocked(id)
		if !ok {
			return notFound("No such container: %s", id)
		}
		c.summary.State = "running"
		c.summary.Status = "Up 1 second"
		return nil
	}

	f.ContainerRemoveFn = func(_ context.Context, id string, opts container.RemoveOptions) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		c, ok := e.lookupLocked(id)
		if !ok {
			return notFound("No such container: %s", id)
		}
		if c.summary.State == "running" && !opts.Force {
			return fmt.Errorf("cannot remove container %s: container is running: %w", id, cerrdefs.ErrConflict)
		}
		e.deleteLocked(c.summary.ID)
		return nil
	}

	f.ContainerListFn = func(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		labels := opts.Filters.Get("label")
		ids := opts.Filters.Get("id")
		var out []container.Summary
		for _, id := range e.order {
			c := e.containers[id]
			if !opts.All && c.summary.State != "running" {
				continue
			}
			if len(ids) > 0 && !slices.ContainsFunc(ids, func(p string) bool { return strings.HasPrefix(id, p) }) {
				continue
			}
			if !labelsMatch(c.summary.Labels, labels) {
				continue
			}
			out = append(out, cloneSummary(c.summary))
		}
		return out, nil
	}

	f.CloseFn = func() error {
		closeOnce.Do(func() {
			e.mu.Lock()
			e.closed++
			e.mu.Unlock()
		})
		return nil
	}

	return f
}
