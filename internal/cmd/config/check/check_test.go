package check

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/dockercloud/internal/cmdutil"
	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/iostreams/iostreamstest"
)

func TestNewCmdCheck(t *testing.T) {
	tio := iostreamstest.New()
	f := &cmdutil.Factory{IOStreams: tio.IOStreams}

	var gotOpts *CheckOptions
	cmd := NewCmdCheck(f, func(_ context.Context, opts *CheckOptions) error {
		gotOpts = opts
		return nil
	})

	cmd.SetArgs([]string{})
	err := cmd.Execute()
	require.NoError(t, err)
	require.NotNil(t, gotOpts, "runF was not called")
	assert.Equal(t, tio.IOStreams, gotOpts.IOStreams)
	assert.Empty(t, gotOpts.File)
}

func TestNewCmdCheck_fileFlag(t *testing.T) {
	for _, args := range [][]string{{"--file", "/some/path.yaml"}, {"-f", "/some/path.yaml"}} {
		tio := iostreamstest.New()
		f := &cmdutil.Factory{IOStreams: tio.IOStreams}

		var gotOpts *CheckOptions
		cmd := NewCmdCheck(f, func(_ context.Context, opts *CheckOptions) error {
			gotOpts = opts
			return nil
		})

		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
		require.NotNil(t, gotOpts)
		assert.Equal(t, "/some/path.yaml", gotOpts.File)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dockercloud.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCheck(t *testing.T, file string) (*iostreamstest.TestIOStreams, error) {
	t.Helper()
	t.Setenv(config.ConfigDirEnv, t.TempDir())
	tio := iostreamstest.New()
	f := &cmdutil.Factory{
		IOStreams:    tio.IOStreams,
		ConfigLoader: func() *config.Loader { return config.NewLoader("") },
	}
	cmd := NewCmdCheck(f, nil)
	if file != "" {
		cmd.SetArgs([]string{"--file", file})
	} else {
		cmd.SetArgs([]string{})
	}
	return tio, cmd.Execute()
}

func TestCheckRun_Valid(t *testing.T) {
	path := writeConfig(t, `
engine:
  uri: tcp://build-host:2376
  tls:
    verify: true
test:
  poll_rate: 2s
  workers: 3
server_url: https://ci.example.com
`)
	tio, err := runCheck(t, path)
	require.NoError(t, err)

	out := tio.OutBuf.String()
	assert.Contains(t, out, path+" is valid")
	assert.Contains(t, out, "Engine:       tcp://build-host:2376")
	assert.Contains(t, out, "TLS verify:   true")
	assert.Contains(t, out, "Server URL:   https://ci.example.com")
	assert.Contains(t, out, "Poll rate:    2s")
	assert.Contains(t, out, "Workers:      3")
}

func TestCheckRun_DefaultsWithoutFile(t *testing.T) {
	tio, err := runCheck(t, "")
	require.NoError(t, err)
	assert.Contains(t, tio.OutBuf.String(), "No config file found, defaults are valid")
	assert.Contains(t, tio.OutBuf.String(), "(environment default)")
}

func TestCheckRun_Invalid(t *testing.T) {
	path := writeConfig(t, `
engine:
  uri: http://build-host
test:
  poll_rate: 0s
`)
	tio, err := runCheck(t, path)
	require.ErrorIs(t, err, cmdutil.SilentError)

	errOut := tio.ErrBuf.String()
	assert.Contains(t, errOut, "Configuration is invalid")
	assert.Contains(t, errOut, "engine.uri")
	assert.Contains(t, errOut, "test.poll_rate")
}

func TestCheckRun_UnknownKey(t *testing.T) {
	path := writeConfig(t, "engine:\n  urii: tcp://x\n")
	tio, err := runCheck(t, path)
	require.ErrorIs(t, err, cmdutil.SilentError)
	assert.Contains(t, tio.ErrBuf.String(), "urii")
}
