package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/muaviaUsmani/tempo/pkg/retry"
)

func newBackoffCmd() *cobra.Command {
	p := retry.DefaultPolicy()

	cmd := &cobra.Command{
		Use:   "backoff",
		Short: "Print the retry delays a policy produces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := p.Validate(); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "ATTEMPT\tDELAY\tMS\n")
			for attempt := 1; attempt <= p.MaxRetries; attempt++ {
				d := retry.ComputeDelay(p, attempt)
				_, _ = fmt.Fprintf(w, "%d\t%s\t%d\n", attempt, d, d.Milliseconds())
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&p.MaxRetries, "max-retries", p.MaxRetries, "number of retries")
	cmd.Flags().DurationVar(&p.RetryDelay, "delay", p.RetryDelay, "delay before the first retry")
	cmd.Flags().Float64Var(&p.BackoffMultiplier, "multiplier", p.BackoffMultiplier, "backoff multiplier (>= 1)")
	cmd.Flags().DurationVar(&p.MaxRetryDelay, "max-delay", p.MaxRetryDelay, "upper bound on any delay")
	return cmd
}
