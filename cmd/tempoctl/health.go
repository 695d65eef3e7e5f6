package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muaviaUsmani/tempo/pkg/execution"
)

func newHealthCmd() *cobra.Command {
	var c execution.Counts

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Score task health from execution counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.Success < 0 || c.Failed < 0 || c.Timeout < 0 || c.Skipped < 0 {
				return fmt.Errorf("counts must not be negative")
			}

			score := execution.HealthScore(c)
			fmt.Fprintf(cmd.OutOrStdout(), "score: %.1f\nstatus: %s\nexecutions: %d\n",
				score, execution.HealthStatus(score), c.Total())
			return nil
		},
	}

	cmd.Flags().IntVar(&c.Success, "success", 0, "successful executions")
	cmd.Flags().IntVar(&c.Failed, "failed", 0, "failed executions")
	cmd.Flags().IntVar(&c.Timeout, "timeout", 0, "timed out executions")
	cmd.Flags().IntVar(&c.Skipped, "skipped", 0, "skipped executions")
	return cmd
}
