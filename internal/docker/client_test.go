package docker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/pkg/whail"
	"github.com/schmitthub/dockercloud/pkg/whail/whailtest"
)

func newTestFacade(t *testing.T) (*Facade, *whailtest.FakeEngine) {
	t.Helper()
	fe := whailtest.NewFakeEngine()
	engine := whail.NewFromExisting(fe.NewClient(), EngineOptions(whail.LabelConfig{}))
	return NewFacade(engine), fe
}

func TestFacade_CreateStartListRemove(t *testing.T) {
	ctx := context.Background()
	f, fe := newTestFacade(t)
	fe.AddLocalImage("alpine:3.20")

	created, err := f.CreateAgentContainer(ctx, CreateRequest{
		Image:          "alpine:3.20",
		Profile:        "builder",
		Spec:           config.ContainerSpec{Env: map[string]string{"FOO": "bar"}},
		ServerURL:      "https://ci.example.com",
		InstanceID:     "0f8fad5b-d9cb-469f-a165-70867728950e",
		TestInstanceID: "test-1",
		ClientID:       "client-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "dockercloud-builder-0f8fad5b", created.Name)
	assert.Contains(t, fe.ContainerEnv(created.ID), config.EnvTestInstanceID+"=test-1")
	assert.Contains(t, fe.ContainerEnv(created.ID), "FOO=bar")

	list, err := f.ListActiveAgentContainers(ctx, TestFilter("test-1"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, created.Name, list[0].Name)
	assert.Equal(t, "created", list[0].State)
	assert.False(t, list[0].Running)
	assert.Equal(t, ManagedLabelValue, list[0].Labels[LabelManaged])
	assert.Equal(t, "client-1", list[0].Labels[LabelClientID])

	require.NoError(t, f.StartAgentContainer(ctx, created.ID))
	list, err = f.ListActiveAgentContainers(ctx, TestFilter("test-1"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Running)

	require.NoError(t, f.RemoveContainer(ctx, created.ID))
	assert.Empty(t, fe.Containers())

	err = f.RemoveContainer(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFacade_ListIgnoresUnmanaged(t *testing.T) {
	ctx := context.Background()
	f, fe := newTestFacade(t)
	fe.AddForeignContainer(map[string]string{LabelTestInstanceID: "test-1"})

	list, err := f.ListActiveAgentContainers(ctx, TestFilter("test-1"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFacade_CreateMissingImage(t *testing.T) {
	f, _ := newTestFacade(t)
	_, err := f.CreateAgentContainer(context.Background(), CreateRequest{Image: "nope:1"})

	var dErr *DockerError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "create", dErr.Op)
	assert.True(t, IsNotFound(err))
}

func TestFacade_PullImage(t *testing.T) {
	ctx := context.Background()

	t.Run("registry image", func(t *testing.T) {
		f, fe := newTestFacade(t)
		fe.AddRegistryImage("alpine")
		require.NoError(t, f.PullImage(ctx, "alpine", nil))
		assert.Equal(t, []string{"docker.io/library/alpine:latest"}, fe.Pulls())
	})

	t.Run("local only image fails to pull", func(t *testing.T) {
		f, fe := newTestFacade(t)
		fe.AddLocalImage("private/builder:1")
		err := f.PullImage(ctx, "private/builder:1", nil)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("credentials are encoded", func(t *testing.T) {
		fake := whailtest.NewFakeAPIClient()
		var got image.PullOptions
		fake.ImagePullFn = func(_ context.Context, _ string, opts image.PullOptions) (io.ReadCloser, error) {
			got = opts
			return whailtest.PullStream(`{"status":"ok"}`), nil
		}
		f := NewFacade(whail.NewFromExisting(fake, EngineOptions(whail.LabelConfig{})))

		creds := &config.RegistryCredentials{Username: "bob", Password: "s3cret", ServerAddress: "registry.example.com"}
		require.NoError(t, f.PullImage(ctx, "registry.example.com/app:1", creds))

		raw, err := base64.URLEncoding.DecodeString(got.RegistryAuth)
		require.NoError(t, err)
		var auth registry.AuthConfig
		require.NoError(t, json.Unmarshal(raw, &auth))
		assert.Equal(t, "bob", auth.Username)
		assert.Equal(t, "s3cret", auth.Password)
		assert.Equal(t, "registry.example.com", auth.ServerAddress)
	})
}

func TestBuildContainerConfig(t *testing.T) {
	cfg, hostCfg, platform, err := buildContainerConfig(CreateRequest{
		Image:   "alpine",
		Profile: "builder",
		Spec: config.ContainerSpec{
			Cmd:         []string{"sleep", "infinity"},
			Labels:      map[string]string{"team": "ci"},
			Ports:       []string{"8080:80/tcp"},
			Binds:       []string{"/cache:/cache"},
			Memory:      "512m",
			CPUs:        "1.5",
			Platform:    "linux/arm64",
			NetworkMode: "bridge",
			User:        "agent",
			WorkingDir:  "/work",
		},
		TestInstanceID: "test-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "alpine", cfg.Image)
	assert.Equal(t, []string{"sleep", "infinity"}, []string(cfg.Cmd))
	assert.Equal(t, "ci", cfg.Labels["team"])
	assert.Equal(t, "test-1", cfg.Labels[LabelTestInstanceID])
	assert.Equal(t, "agent", cfg.User)
	assert.Equal(t, "/work", cfg.WorkingDir)
	assert.Contains(t, cfg.ExposedPorts, nat.Port("80/tcp"))

	assert.Equal(t, []nat.PortBinding{{HostPort: "8080"}}, hostCfg.PortBindings[nat.Port("80/tcp")])
	assert.Equal(t, []string{"/cache:/cache"}, hostCfg.Binds)
	assert.Equal(t, int64(512*1024*1024), hostCfg.Memory)
	assert.Equal(t, int64(1.5e9), hostCfg.NanoCPUs)
	assert.Equal(t, container.NetworkMode("bridge"), hostCfg.NetworkMode)

	require.NotNil(t, platform)
	assert.Equal(t, "linux", platform.OS)
	assert.Equal(t, "arm64", platform.Architecture)
}

func TestBuildContainerConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"no image", CreateRequest{}},
		{"bad port", CreateRequest{Image: "a", Spec: config.ContainerSpec{Ports: []string{"nope:x"}}}},
		{"bad memory", CreateRequest{Image: "a", Spec: config.ContainerSpec{Memory: "lots"}}},
		{"bad cpus", CreateRequest{Image: "a", Spec: config.ContainerSpec{CPUs: "many"}}},
		{"bad platform", CreateRequest{Image: "a", Spec: config.ContainerSpec{Platform: "not/a/real/platform/x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := buildContainerConfig(tt.req)
			assert.ErrorIs(t, err, ErrInvalidSpec)
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("boom")))
	assert.True(t, IsNotFound(whail.ErrContainerNotFound("abc")))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", cerrdefs.ErrNotFound)))
}

func TestContainerInfoClone(t *testing.T) {
	info := ContainerInfo{ID: "0123456789abcdef", Labels: map[string]string{"a": "1"}}
	c := info.Clone()
	c.Labels["a"] = "2"
	assert.Equal(t, "1", info.Labels["a"])
	assert.Equal(t, "0123456789ab", info.ShortID())
}
