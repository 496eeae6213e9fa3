package initcmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/schmitthub/dockercloud/internal/cmdutil"
	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/iostreams"
)

// InitOptions holds options for the config init command.
type InitOptions struct {
	IOStreams *iostreams.IOStreams
	// Path returns where the file is written. Defaults to --config, then
	// <config dir>/dockercloud.yaml.
	Path func() (string, error)

	Force bool
}

// NewCmdInit creates the config init command.
func NewCmdInit(f *cmdutil.Factory, runF func(context.Context, *InitOptions) error) *cobra.Command {
	opts := &InitOptions{
		IOStreams: f.IOStreams,
		Path: func() (string, error) {
			if f.ConfigFile != "" {
				return f.ConfigFile, nil
			}
			dir, err := config.ConfigDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(dir, config.ConfigFileName+".yaml"), nil
		},
	}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a documented default dockercloud.yaml",
		Long: `Writes dockercloud.yaml with every key set to its default value.

The file goes to the path given by --config, or to the dockercloud config
directory (DOCKERCLOUD_CONFIG_DIR overrides it). An existing file is left
alone unless --force is given.`,
		Example: `  # Create the default config file
  dockercloud config init

  # Overwrite a config file at a custom path
  dockercloud --config ./dockercloud.yaml config init --force`,
		Args: cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return initRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite an existing file")

	return cmd
}

func initRun(_ context.Context, opts *InitOptions) error {
	ios := opts.IOStreams
	cs := ios.ColorScheme()

	path, err := opts.Path()
	if err != nil {
		return fmt.Errorf("locating config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil && !opts.Force {
		fmt.Fprintf(ios.ErrOut, "%s %s already exists (use --force to overwrite)\n", cs.FailureIcon(), path)
		return cmdutil.SilentError
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.DefaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Fprintf(ios.Out, "%s Wrote %s\n", cs.SuccessIcon(), cs.Bold(path))
	return nil
}
