package root

import (
	"github.com/spf13/cobra"

	configcmd "github.com/schmitthub/dockercloud/internal/cmd/config"
	pingcmd "github.com/schmitthub/dockercloud/internal/cmd/ping"
	testcmd "github.com/schmitthub/dockercloud/internal/cmd/test"
	versioncmd "github.com/schmitthub/dockercloud/internal/cmd/version"
	"github.com/schmitthub/dockercloud/internal/cmdutil"
	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/logger"
)

// NewCmdRoot creates the root command for the dockercloud CLI.
func NewCmdRoot(f *cmdutil.Factory, version, commit string) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "dockercloud",
		Short: "Provision and verify build agent containers on a Docker engine",
		Long: `dockercloud runs build agent containers on a Docker engine and checks
that each one comes up and connects back to its server.

Quick start:
  dockercloud ping                          # Check the engine is reachable
  dockercloud test alpine --skip-agent-check # Create, start and verify a container
  dockercloud test --spec agent.yaml myorg/agent:1.4`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Annotations: map[string]string{
			"versionInfo": versioncmd.Format(version, commit),
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initializeLogger(f, debug)

			logger.Debug().
				Str("version", f.Version).
				Str("config", f.ConfigFile).
				Bool("debug", debug).
				Msg("dockercloud starting")
			return nil
		},
		Version: f.Version,
	}

	cmd.PersistentFlags().BoolVarP(&debug, "debug", "D", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&f.ConfigFile, "config", "", "Path to dockercloud.yaml (default: search the config directory)")

	cmd.SetVersionTemplate(versioncmd.Format(version, commit))
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return cmdutil.FlagErrorWrap(err)
	})

	cmd.AddCommand(testcmd.NewCmdTest(f, nil))
	cmd.AddCommand(pingcmd.NewCmdPing(f, nil))
	cmd.AddCommand(configcmd.NewCmdConfig(f))
	cmd.AddCommand(versioncmd.NewCmdVersion(f, version, commit))

	return cmd
}

// initializeLogger sets up the logger with file logging if possible.
// Falls back to console-only logging on any errors.
func initializeLogger(f *cmdutil.Factory, debug bool) {
	settings, err := f.Settings()
	if err != nil {
		logger.Init(debug)
		logger.Warn().Err(err).Msg("file logging unavailable: failed to load settings")
		return
	}

	logsDir, err := config.LogsDir()
	if err != nil {
		logger.Init(debug)
		logger.Warn().Err(err).Msg("file logging unavailable: failed to get logs directory")
		return
	}

	logCfg := &logger.LoggingConfig{
		FileEnabled: settings.Logging.FileEnabled,
		MaxSizeMB:   settings.Logging.MaxSizeMB,
		MaxAgeDays:  settings.Logging.MaxAgeDays,
		MaxBackups:  settings.Logging.MaxBackups,
	}

	if err := logger.InitWithFile(debug, logsDir, logCfg); err != nil {
		logger.Init(debug)
		logger.Warn().Err(err).Msg("file logging unavailable: failed to initialize file writer")
		return
	}
	if path := logger.GetLogFilePath(); path != "" {
		logger.Debug().Str("file", path).Msg("logging to file")
	}
}
