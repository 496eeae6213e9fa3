// Package dockercloud holds the CLI entry point.
package dockercloud

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/schmitthub/dockercloud/internal/cmd/factory"
	"github.com/schmitthub/dockercloud/internal/cmd/root"
	"github.com/schmitthub/dockercloud/internal/cmdutil"
	"github.com/schmitthub/dockercloud/internal/logger"
	"github.com/schmitthub/dockercloud/pkg/whail"
)

// Build-time variables injected via ldflags
var (
	Version = "dev"
	Commit  = ""
)

const (
	exitOk    = 0
	exitError = 1
	exitUsage = 2
)

// Main is the entry point for the dockercloud CLI.
// It initializes the Factory, creates the root command, and executes it.
func Main() int {
	defer logger.CloseFileWriter()

	f := factory.New(Version, Commit)
	rootCmd := root.NewCmdRoot(f, Version, Commit)

	cmd, err := rootCmd.ExecuteC()
	return handleError(f.IOStreams.ErrOut, cmd, err)
}

// handleError prints err the way its type asks for and picks the exit code.
func handleError(w io.Writer, cmd *cobra.Command, err error) int {
	if err == nil {
		return exitOk
	}
	if errors.Is(err, cmdutil.SilentError) {
		return exitError
	}

	var flagErr *cmdutil.FlagError
	if errors.As(err, &flagErr) {
		fmt.Fprintln(w, err)
		if cmd != nil {
			fmt.Fprintln(w)
			fmt.Fprint(w, cmd.UsageString())
		}
		return exitUsage
	}

	var dErr *whail.DockerError
	if errors.As(err, &dErr) {
		fmt.Fprint(w, dErr.FormatUserError())
		return exitError
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	if cmd != nil {
		fmt.Fprintf(w, "Run '%s --help' for usage.\n", cmd.CommandPath())
	}
	return exitError
}
