package check

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schmitthub/dockercloud/internal/cmdutil"
	internalconfig "github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/iostreams"
	"github.com/schmitthub/dockercloud/internal/logger"
)

// CheckOptions holds options for the config check command.
type CheckOptions struct {
	IOStreams    *iostreams.IOStreams
	ConfigLoader func() *internalconfig.Loader

	File string
}

// NewCmdCheck creates the config check command.
func NewCmdCheck(f *cmdutil.Factory, runF func(context.Context, *CheckOptions) error) *cobra.Command {
	opts := &CheckOptions{
		IOStreams:    f.IOStreams,
		ConfigLoader: f.ConfigLoader,
	}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate dockercloud.yaml",
		Long: `Loads dockercloud.yaml with DOCKERCLOUD_* overrides applied and validates it.

Checks for:
  - Unknown keys and YAML syntax errors
  - A well-formed engine URI (tcp://, unix:// or npipe://)
  - Positive timeouts, rates and worker count`,
		Example: `  # Validate the configuration in the config directory
  dockercloud config check

  # Validate a specific file
  dockercloud config check --file ./dockercloud.yaml`,
		Args: cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return checkRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Path to the config file to check")

	return cmd
}

func checkRun(_ context.Context, opts *CheckOptions) error {
	ios := opts.IOStreams
	cs := ios.ColorScheme()

	var loader *internalconfig.Loader
	if opts.File != "" {
		loader = internalconfig.NewLoader(opts.File)
	} else {
		loader = opts.ConfigLoader()
	}

	settings, err := loader.Load()
	if err != nil {
		fmt.Fprintf(ios.ErrOut, "%s Configuration is invalid\n\n", cs.FailureIcon())

		var multiErr *internalconfig.MultiValidationError
		if errors.As(err, &multiErr) {
			for _, e := range multiErr.ValidationErrors() {
				fmt.Fprintf(ios.ErrOut, "  - %s\n", e)
			}
		} else {
			fmt.Fprintf(ios.ErrOut, "  %s\n", err)
		}
		return cmdutil.SilentError
	}

	file := loader.ConfigFileUsed()
	logger.Debug().Str("file", file).Msg("configuration loaded")

	if file == "" {
		fmt.Fprintf(ios.Out, "%s No config file found, defaults are valid\n", cs.SuccessIcon())
	} else {
		fmt.Fprintf(ios.Out, "%s %s is valid\n", cs.SuccessIcon(), cs.Bold(file))
	}
	fmt.Fprintln(ios.Out)

	engine := settings.Engine.URI
	if engine == "" {
		engine = "(environment default)"
	}
	fmt.Fprintf(ios.Out, "  Engine:       %s\n", engine)
	if settings.Engine.TLS.Enabled() {
		fmt.Fprintf(ios.Out, "  TLS verify:   %t\n", settings.Engine.TLS.Verify)
	}
	if settings.ServerURL != "" {
		fmt.Fprintf(ios.Out, "  Server URL:   %s\n", settings.ServerURL)
	}
	fmt.Fprintf(ios.Out, "  Poll rate:    %s\n", settings.Test.PollRate)
	fmt.Fprintf(ios.Out, "  Agent wait:   %s\n", settings.Test.AgentWaitTimeout)
	fmt.Fprintf(ios.Out, "  Workers:      %d\n", settings.Test.Workers)

	return nil
}
