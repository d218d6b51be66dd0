// Command dbgcore drives a program under a debug adapter from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/dbgcore/internal/logger"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	root, log := newRootCmd()
	err := root.Execute()
	log.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *logger.Logger) {
	log := logger.New("dbgcore")

	root := &cobra.Command{
		Use:   "dbgcore",
		Short: "Runs a program under a debug adapter",
		Long: `dbgcore starts a debug adapter (gdb, lldb-dap, dlv or any DAP server),
sets breakpoints and reports stops, output and breakpoint changes as they happen.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.HiddenDefaultCmd = true
	log.AddLevelFlag(root.PersistentFlags())

	root.AddCommand(newRunCmd(log), newVersionCmd())
	return root, log
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dbgcore %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
