// Package ping implements the ping command.
package ping

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schmitthub/dockercloud/internal/cmdutil"
	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/docker"
	"github.com/schmitthub/dockercloud/internal/iostreams"
	"github.com/schmitthub/dockercloud/internal/logger"
)

// PingOptions holds options for the ping command.
type PingOptions struct {
	IOStreams *iostreams.IOStreams
	Settings  func() (*config.Settings, error)
	Engines   func() docker.FacadeFactory

	Host       string
	APIVersion string
}

// NewCmdPing creates the ping command.
func NewCmdPing(f *cmdutil.Factory, runF func(context.Context, *PingOptions) error) *cobra.Command {
	opts := &PingOptions{
		IOStreams: f.IOStreams,
		Settings:  f.Settings,
		Engines:   f.Engines,
	}

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured Docker engine is reachable",
		Long: `Connects to the Docker engine from dockercloud.yaml (or the local default)
and prints the API version and operating system it reports.`,
		Example: `  # Ping the configured engine
  dockercloud ping

  # Ping a remote engine
  dockercloud ping --host tcp://build-host:2376`,
		Args: cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runF != nil {
				return runF(cmd.Context(), opts)
			}
			return pingRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Host, "host", "H", "", "Engine URI (overrides engine.uri)")
	cmd.Flags().StringVar(&opts.APIVersion, "api-version", "", "Engine API version (overrides engine.api_version)")

	return cmd
}

func pingRun(ctx context.Context, opts *PingOptions) error {
	ios := opts.IOStreams
	cs := ios.ColorScheme()

	settings, err := opts.Settings()
	if err != nil {
		return err
	}
	engineCfg := settings.Engine
	if opts.Host != "" {
		engineCfg.URI = opts.Host
	}
	if opts.APIVersion != "" {
		engineCfg.APIVersion = opts.APIVersion
	}
	target := engineCfg.URI
	if target == "" {
		target = "default engine"
	}

	facade, err := opts.Engines().CreateFacade(ctx, engineCfg)
	if err != nil {
		fmt.Fprintf(ios.ErrOut, "%s Cannot connect to %s: %v\n", cs.FailureIcon(), target, err)
		return cmdutil.SilentError
	}
	defer func() {
		if err := facade.Close(); err != nil {
			logger.Debug().Err(err).Msg("closing engine client")
		}
	}()

	ping, err := facade.Ping(ctx)
	if err != nil {
		fmt.Fprintf(ios.ErrOut, "%s %s did not answer: %v\n", cs.FailureIcon(), target, err)
		return cmdutil.SilentError
	}

	fmt.Fprintf(ios.Out, "%s %s is reachable\n", cs.SuccessIcon(), cs.Bold(target))
	fmt.Fprintf(ios.Out, "  API version: %s\n", ping.APIVersion)
	if ping.OSType != "" {
		fmt.Fprintf(ios.Out, "  OS:          %s\n", ping.OSType)
	}
	return nil
}
