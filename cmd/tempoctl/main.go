// Command tempoctl inspects triggers, retry schedules, health scores, window
// overlaps and dependency graphs from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muaviaUsmani/tempo/internal/logger"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tempoctl",
		Short:         "Inspect tempo triggers, retries, health and dependencies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newCompileCmd(),
		newOneShotCmd(),
		newValidateCmd(),
		newNextCmd(),
		newBackoffCmd(),
		newHealthCmd(),
		newOverlapCmd(),
		newDepsCmd(),
	)
	return cmd
}

func main() {
	logger.SetDefault(&logger.NoOpLogger{})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
