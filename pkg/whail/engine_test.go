package whail_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/schmitthub/dockercloud/pkg/whail"
	"github.com/schmitthub/dockercloud/pkg/whail/whailtest"
)

const managedKey = whailtest.TestLabelPrefix + "." + whailtest.TestManagedLabel

func newEngine(opts ...func(*whail.EngineOptions)) (*whail.Engine, *whailtest.FakeAPIClient) {
	fake := whailtest.NewFakeAPIClient()
	o := whailtest.TestEngineOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return whail.NewFromExisting(fake, o), fake
}

func TestNewFromExisting_DefaultManagedLabel(t *testing.T) {
	fake := whailtest.NewFakeAPIClient()
	e := whail.NewFromExisting(fake, whail.EngineOptions{LabelPrefix: "com.example"})
	var got *container.Config
	fake.ContainerCreateFn = func(_ context.Context, cfg *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
		got = cfg
		return container.CreateResponse{ID: "abc123"}, nil
	}

	if _, err := e.ContainerCreate(context.Background(), &container.Config{Image: "alpine"}, nil, nil, nil, ""); err != nil {
		t.Fatalf("ContainerCreate() error = %v", err)
	}
	if v := got.Labels["com.example.managed"]; v != "true" {
		t.Errorf("managed label = %q, want %q; labels: %v", v, "true", got.Labels)
	}
}

func TestHealthCheck(t *testing.T) {
	e, fake := newEngine()
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	fake.PingFn = func(context.Context) (types.Ping, error) {
		return types.Ping{}, errors.New("connection refused")
	}
	err := e.HealthCheck(context.Background())
	var dErr *whail.DockerError
	if !errors.As(err, &dErr) || dErr.Op != "connect" {
		t.Fatalf("HealthCheck() error = %v, want connect DockerError", err)
	}
}

func TestContainerCreate_InjectsLabels(t *testing.T) {
	e, fake := newEngine(func(o *whail.EngineOptions) {
		o.Labels = whail.LabelConfig{
			Default:   map[string]string{"team": "infra"},
			Container: map[string]string{"kind": "agent"},
		}
	})

	var got *container.Config
	fake.ContainerCreateFn = func(_ context.Context, cfg *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
		got = cfg
		return container.CreateResponse{ID: "abc123"}, nil
	}

	cfg := &container.Config{
		Image:  "alpine",
		Labels: map[string]string{"user": "label", managedKey: "false"},
	}
	resp, err := e.ContainerCreate(context.Background(), cfg, nil, nil, nil, "agent-1", map[string]string{"extra": "1"})
	if err != nil {
		t.Fatalf("ContainerCreate() error = %v", err)
	}
	if resp.ID != "abc123" {
		t.Errorf("ID = %q, want abc123", resp.ID)
	}

	want := map[string]string{
		"team":     "infra",
		"kind":     "agent",
		"user":     "label",
		"extra":    "1",
		managedKey: "true",
	}
	for k, v := range want {
		if got.Labels[k] != v {
			t.Errorf("label %q = %q, want %q", k, got.Labels[k], v)
		}
	}
}

func TestContainerCreate_WrapsError(t *testing.T) {
	e, fake := newEngine()
	fake.ContainerCreateFn = func(context.Context, *container.Config, *container.HostConfig, *network.NetworkingConfig, *ocispec.Platform, string) (container.CreateResponse, error) {
		return container.CreateResponse{}, errors.New("no space left")
	}

	_, err := e.ContainerCreate(context.Background(), &container.Config{Image: "alpine"}, nil, nil, nil, "")
	var dErr *whail.DockerError
	if !errors.As(err, &dErr) || dErr.Op != "create" {
		t.Fatalf("error = %v, want create DockerError", err)
	}
}

func TestContainerStart_RefusesUnmanaged(t *testing.T) {
	e, fake := newEngine()
	fake.ContainerListFn = func(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
		return []container.Summary{whailtest.UnmanagedContainer(opts.Filters.Get("id")[0])}, nil
	}
	fake.ContainerStartFn = func(context.Context, string, container.StartOptions) error { return nil }

	err := e.ContainerStart(context.Background(), "foreign", container.StartOptions{})
	var dErr *whail.DockerError
	if !errors.As(err, &dErr) || dErr.Op != "find" {
		t.Fatalf("error = %v, want not found DockerError", err)
	}
	whailtest.AssertNotCalled(t, fake, "ContainerStart")
}

func TestContainerStart_Managed(t *testing.T) {
	e, fake := newEngine()
	fake.ContainerStartFn = func(context.Context, string, container.StartOptions) error { return nil }

	if err := e.ContainerStart(context.Background(), "mine", container.StartOptions{}); err != nil {
		t.Fatalf("ContainerStart() error = %v", err)
	}
	whailtest.AssertCalledN(t, fake, "ContainerStart", 1)
}

func TestContainerRemove(t *testing.T) {
	tests := []struct {
		name      string
		removeErr error
		wantOp    string
	}{
		{name: "success"},
		{name: "already gone", removeErr: fmt.Errorf("gone: %w", cerrdefs.ErrNotFound), wantOp: "find"},
		{name: "daemon error", removeErr: errors.New("device busy"), wantOp: "remove"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fake := newEngine()
			var opts container.RemoveOptions
			fake.ContainerRemoveFn = func(_ context.Context, _ string, o container.RemoveOptions) error {
				opts = o
				return tt.removeErr
			}

			err := e.ContainerRemove(context.Background(), "mine", true)
			if tt.wantOp == "" {
				if err != nil {
					t.Fatalf("ContainerRemove() error = %v", err)
				}
				if !opts.Force || !opts.RemoveVolumes {
					t.Errorf("options = %+v, want Force and RemoveVolumes", opts)
				}
				return
			}
			var dErr *whail.DockerError
			if !errors.As(err, &dErr) || dErr.Op != tt.wantOp {
				t.Fatalf("error = %v, want %s DockerError", err, tt.wantOp)
			}
		})
	}
}

func TestContainerRemove_EmptyID(t *testing.T) {
	e, fake := newEngine()
	err := e.ContainerRemove(context.Background(), "", true)
	if err == nil {
		t.Fatal("expected error for empty id")
	}
	whailtest.AssertNotCalled(t, fake, "ContainerList")
}

func TestContainerListByLabels_InjectsManagedFilter(t *testing.T) {
	e, fake := newEngine()
	var got container.ListOptions
	fake.ContainerListFn = func(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
		got = opts
		return nil, nil
	}

	if _, err := e.ContainerListByLabels(context.Background(), map[string]string{"role": "agent"}, true); err != nil {
		t.Fatalf("ContainerListByLabels() error = %v", err)
	}
	if !got.All {
		t.Error("expected All to be set")
	}
	if !got.Filters.ExactMatch("label", managedKey+"=true") {
		t.Errorf("managed filter missing: %v", got.Filters.Get("label"))
	}
	if !got.Filters.ExactMatch("label", "role=agent") {
		t.Errorf("role filter missing: %v", got.Filters.Get("label"))
	}
}

func TestContainerList_ZeroFilters(t *testing.T) {
	e, fake := newEngine()
	var got container.ListOptions
	fake.ContainerListFn = func(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
		got = opts
		return nil, errors.New("daemon hiccup")
	}

	_, err := e.ContainerList(context.Background(), container.ListOptions{})
	var dErr *whail.DockerError
	if !errors.As(err, &dErr) || dErr.Op != "list" {
		t.Fatalf("error = %v, want list DockerError", err)
	}
	if got.Filters.Len() != 1 {
		t.Errorf("expected only the managed filter, got %v", got.Filters.Get("label"))
	}
}

func TestImagePull(t *testing.T) {
	tests := []struct {
		name    string
		pullFn  func(context.Context, string, image.PullOptions) (io.ReadCloser, error)
		wantErr string
		wantOut string
	}{
		{
			name: "success",
			pullFn: func(context.Context, string, image.PullOptions) (io.ReadCloser, error) {
				return whailtest.PullStream(`{"status":"Downloaded newer image"}`), nil
			},
			wantOut: "Downloaded newer image",
		},
		{
			name: "not found",
			pullFn: func(context.Context, string, image.PullOptions) (io.ReadCloser, error) {
				return nil, fmt.Errorf("manifest unknown: %w", cerrdefs.ErrNotFound)
			},
			wantErr: "not found",
		},
		{
			name: "error in stream",
			pullFn: func(context.Context, string, image.PullOptions) (io.ReadCloser, error) {
				return whailtest.PullStream(`{"errorDetail":{"message":"unauthorized"},"error":"unauthorized"}`), nil
			},
			wantErr: "unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fake := newEngine()
			fake.ImagePullFn = tt.pullFn

			var out bytes.Buffer
			err := e.ImagePull(context.Background(), "alpine", image.PullOptions{}, &out)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ImagePull() error = %v", err)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output = %q, want containing %q", out.String(), tt.wantOut)
			}
		})
	}
}

func TestFakeEngine_Lifecycle(t *testing.T) {
	ctx := context.Background()
	fe := whailtest.NewFakeEngine()
	fe.AddRegistryImage("alpine")
	e := whail.NewFromExisting(fe.NewClient(), whailtest.TestEngineOptions())

	if err := e.ImagePull(ctx, "alpine", image.PullOptions{}, nil); err != nil {
		t.Fatalf("ImagePull() error = %v", err)
	}
	resp, err := e.ContainerCreate(ctx, &container.Config{Image: "alpine", Labels: map[string]string{"role": "agent"}}, nil, nil, nil, "agent")
	if err != nil {
		t.Fatalf("ContainerCreate() error = %v", err)
	}
	foreign := fe.AddForeignContainer(map[string]string{"role": "agent"})

	if err := e.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		t.Fatalf("ContainerStart() error = %v", err)
	}
	if err := e.ContainerStart(ctx, foreign, container.StartOptions{}); err == nil {
		t.Fatal("expected starting a foreign container to fail")
	}

	list, err := e.ContainerListByLabels(ctx, map[string]string{"role": "agent"}, false)
	if err != nil {
		t.Fatalf("ContainerListByLabels() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != resp.ID {
		t.Fatalf("list = %+v, want only %s", list, resp.ID)
	}

	if err := e.ContainerRemove(ctx, resp.ID, true); err != nil {
		t.Fatalf("ContainerRemove() error = %v", err)
	}
	if len(fe.Containers()) != 1 {
		t.Errorf("expected only the foreign container to remain, got %d", len(fe.Containers()))
	}
}

func TestMergeLabels_LaterWins(t *testing.T) {
	got := whail.MergeLabels(map[string]string{"a": "1", "b": "1"}, nil, map[string]string{"b": "2"})
	if got["a"] != "1" || got["b"] != "2" {
		t.Errorf("MergeLabels() = %v", got)
	}
}
