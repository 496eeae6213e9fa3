package config

import (
	"github.com/spf13/cobra"

	"github.com/schmitthub/dockercloud/internal/cmd/config/check"
	initcmd "github.com/schmitthub/dockercloud/internal/cmd/config/init"
	"github.com/schmitthub/dockercloud/internal/cmdutil"
)

// NewCmdConfig creates the config command.
func NewCmdConfig(f *cmdutil.Factory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
		Long:  `Commands for creating and validating dockercloud.yaml.`,
	}

	cmd.AddCommand(check.NewCmdCheck(f, nil))
	cmd.AddCommand(initcmd.NewCmdInit(f, nil))

	return cmd
}
