package factory

import (
	"sync"

	"github.com/schmitthub/dockercloud/internal/cmdutil"
	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/docker"
	"github.com/schmitthub/dockercloud/internal/iostreams"
	"github.com/schmitthub/dockercloud/pkg/whail"
)

// New creates a fully-wired Factory with lazy-initialized dependency closures.
// Called exactly once at the CLI entry point (cmd/dockercloud).
// Command tests build &cmdutil.Factory{} directly instead.
func New(version, commit string) *cmdutil.Factory {
	f := &cmdutil.Factory{
		Version:   version,
		Commit:    commit,
		IOStreams: iostreams.System(),
	}

	// Config. The loader is created on first use so the --config flag has
	// been parsed by then.
	var (
		loaderOnce sync.Once
		loader     *config.Loader
	)
	f.ConfigLoader = func() *config.Loader {
		loaderOnce.Do(func() {
			loader = config.NewLoader(f.ConfigFile)
		})
		return loader
	}

	var (
		settingsOnce sync.Once
		settings     *config.Settings
		settingsErr  error
	)
	f.Settings = func() (*config.Settings, error) {
		settingsOnce.Do(func() {
			settings, settingsErr = f.ConfigLoader().Load()
		})
		return settings, settingsErr
	}

	f.Engines = func() docker.FacadeFactory {
		return docker.EngineFactory{Labels: whail.LabelConfig{}}
	}

	return f
}
