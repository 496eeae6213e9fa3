package version

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schmitthub/dockercloud/internal/cmdutil"
)

// NewCmdVersion creates the "version" subcommand.
func NewCmdVersion(f *cmdutil.Factory, version, commit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of dockercloud",
		Args:  cmdutil.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := cmd.Root().Annotations["versionInfo"]
			if info == "" {
				info = Format(version, commit)
			}
			fmt.Fprint(f.IOStreams.Out, info)
		},
	}
}

// Format returns the version string for display.
func Format(version, commit string) string {
	version = strings.TrimPrefix(version, "v")

	var commitStr string
	if commit != "" {
		if len(commit) > 7 {
			commit = commit[:7]
		}
		commitStr = fmt.Sprintf(" (%s)", commit)
	}

	return fmt.Sprintf("dockercloud version %s%s\n", version, commitStr)
}
