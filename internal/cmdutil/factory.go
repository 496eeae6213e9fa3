package cmdutil

import (
	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/docker"
	"github.com/schmitthub/dockercloud/internal/iostreams"
)

// Factory provides shared dependencies for CLI commands.
// It is a dependency injection container: the struct defines what
// dependencies exist (the contract), while internal/cmd/factory
// wires the real implementations.
//
// Closure fields are set by the factory constructor and use lazy
// initialization internally. Commands extract only the fields they
// need into per-command Options structs.
type Factory struct {
	// Version info (set at build time via ldflags)
	Version string
	Commit  string

	// ConfigFile is set from the --config flag before any command runs.
	ConfigFile string

	IOStreams *iostreams.IOStreams

	ConfigLoader func() *config.Loader
	Settings     func() (*config.Settings, error)

	// Engines creates one engine facade per container test.
	Engines func() docker.FacadeFactory
}
