package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigYAMLMatchesDefaults(t *testing.T) {
	s, err := LoadFromString(DefaultConfigYAML)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadFromString(t *testing.T) {
	s, err := LoadFromString(`
engine:
  uri: tcp://10.0.0.1
  read_timeout: 5s
test:
  poll_rate: 250ms
  workers: 2
server_url: https://ci.example.com
logging:
  file_enabled: false
`)
	require.NoError(t, err)

	assert.Equal(t, "tcp://10.0.0.1", s.Engine.URI)
	assert.Equal(t, 5*time.Second, s.Engine.ReadTimeout)
	assert.Equal(t, DefaultConnectTimeout, s.Engine.ConnectTimeout)
	assert.Equal(t, 250*time.Millisecond, s.Test.PollRate)
	assert.Equal(t, 2, s.Test.Workers)
	assert.Equal(t, DefaultAgentWaitTimeout, s.Test.AgentWaitTimeout)
	assert.Equal(t, "https://ci.example.com", s.ServerURL)
	require.NotNil(t, s.Logging.FileEnabled)
	assert.False(t, *s.Logging.FileEnabled)
}

func TestLoadFromStringRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{name: "unknown key", content: "engine:\n  url: tcp://x\n"},
		{name: "uri with path", content: "engine:\n  uri: tcp://127.0.0.1:2375/path\n", field: "engine.uri"},
		{name: "zero workers", content: "test:\n  workers: 0\n", field: "test.workers"},
		{name: "negative poll rate", content: "test:\n  poll_rate: -1s\n", field: "test.poll_rate"},
		{name: "cert without key", content: "engine:\n  tls:\n    cert: /c.pem\n", field: "engine.tls"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromString(tt.content)
			require.Error(t, err)
			if tt.field == "" {
				return
			}
			var multi *MultiValidationError
			require.True(t, errors.As(err, &multi), "got %T: %v", err, err)
			var ve *ValidationError
			require.True(t, errors.As(multi.Errors[0], &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DOCKERCLOUD_TEST_POLL_RATE", "3s")
	t.Setenv("DOCKERCLOUD_ENGINE_URI", "unix:///tmp/docker.sock")
	t.Setenv("DOCKERCLOUD_SERVER_URL", "http://localhost:8111")

	s, err := LoadFromString("")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, s.Test.PollRate)
	assert.Equal(t, "unix:///tmp/docker.sock", s.Engine.URI)
	assert.Equal(t, "http://localhost:8111", s.ServerURL)
}

func TestCollectLeafPaths(t *testing.T) {
	paths := collectLeafPaths(reflect.TypeOf(Settings{}), "")
	assert.Contains(t, paths, "engine.tls.ca")
	assert.Contains(t, paths, "engine.read_timeout")
	assert.Contains(t, paths, "test.agent_wait_timeout")
	assert.Contains(t, paths, "logging.file_enabled")
	assert.NotContains(t, paths, "engine.tls")
}

func TestLoaderMissingDefaultFile(t *testing.T) {
	t.Setenv(ConfigDirEnv, t.TempDir())

	s, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPollRate, s.Test.PollRate)
}

func TestLoaderExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("test:\n  idle_time: 1m\n"), 0o644))

	l := NewLoader(path)
	s, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, s.Test.IdleTime)
	assert.Equal(t, path, l.ConfigFileUsed())

	_, err = NewLoader(filepath.Join(dir, "missing.yaml")).Load()
	require.Error(t, err)
}

func TestLoaderWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dockercloud.yaml")
	require.NoError(t, os.WriteFile(path, []byte("test:\n  workers: 2\n"), 0o644))

	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)

	var workers atomic.Int64
	l.Watch(func(s *Settings, err error) {
		if err == nil {
			workers.Store(int64(s.Test.Workers))
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("test:\n  workers: 6\n"), 0o644))
	require.Eventually(t, func() bool { return workers.Load() == 6 }, 5*time.Second, 20*time.Millisecond)
}

func TestImageConfigValidate(t *testing.T) {
	assert.NoError(t, ImageConfig{Image: "alpine:3"}.Validate())

	err := ImageConfig{Image: "  "}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image")

	err = ImageConfig{
		Image: "alpine",
		Spec:  ContainerSpec{Labels: map[string]string{LabelTestInstanceID: "x"}},
	}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")

	err = ImageConfig{Image: "alpine", Credentials: &RegistryCredentials{}}.Validate()
	require.Error(t, err)
}

func TestImageConfigCloneIsDeep(t *testing.T) {
	orig := ImageConfig{
		Image:       "alpine",
		Credentials: &RegistryCredentials{Username: "u", Password: "p"},
		Spec:        ContainerSpec{Env: map[string]string{"A": "1"}, Cmd: []string{"sh"}},
	}
	c := orig.Clone()
	c.Spec.Env["A"] = "2"
	c.Spec.Cmd[0] = "bash"
	c.Credentials.Password = "changed"

	assert.Equal(t, "1", orig.Spec.Env["A"])
	assert.Equal(t, "sh", orig.Spec.Cmd[0])
	assert.Equal(t, "p", orig.Credentials.Password)
}

func TestRegistryCredentialsStringHidesPassword(t *testing.T) {
	c := RegistryCredentials{Username: "bob", Password: "hunter2", ServerAddress: "registry.example.com"}
	assert.False(t, strings.Contains(c.String(), "hunter2"))
}

func TestParseContainerSpec(t *testing.T) {
	spec, err := ParseContainerSpec(strings.NewReader(`
cmd: ["sleep", "infinity"]
env:
  FOO: bar
ports: ["8080:80/tcp"]
memory: 512m
platform: linux/amd64
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"sleep", "infinity"}, spec.Cmd)
	assert.Equal(t, "bar", spec.Env["FOO"])
	assert.Equal(t, []string{"8080:80/tcp"}, spec.Ports)
	assert.Equal(t, "512m", spec.Memory)

	_, err = ParseContainerSpec(strings.NewReader("bogus: 1\n"))
	assert.Error(t, err)

	_, err = ParseContainerSpec(strings.NewReader("ports: [\"\"]\n"))
	assert.Error(t, err)
}

func TestLoadContainerSpecFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user: agent\n"), 0o644))

	spec, err := LoadContainerSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "agent", spec.User)
}

func TestConfigDir(t *testing.T) {
	t.Setenv(ConfigDirEnv, "/custom/dir")
	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/dir", dir)

	logs, err := LogsDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/custom/dir", LogsSubdir), logs)
}
