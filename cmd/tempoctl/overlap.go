package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/muaviaUsmani/tempo/pkg/overlap"
)

func newOverlapCmd() *cobra.Command {
	var (
		file      string
		candidate string
		owner     string
	)

	cmd := &cobra.Command{
		Use:   "overlap",
		Short: "Find the windows a candidate window overlaps",
		Long: `Read a JSON array of windows ({"id","owner","start","end"}) and report which
of them the window named by --candidate overlaps. The candidate itself is
excluded, so an edited window does not conflict with its old version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, nil, file)
			if err != nil {
				return err
			}

			var windows []overlap.Window
			if err := json.Unmarshal(data, &windows); err != nil {
				return fmt.Errorf("parsing windows: %w", err)
			}

			var target *overlap.Window
			for i := range windows {
				if windows[i].ID == candidate {
					target = &windows[i]
					break
				}
			}
			if target == nil {
				return fmt.Errorf("candidate window %q not found", candidate)
			}

			res, err := overlap.FindOverlaps(owner, *target, windows, target.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !res.HasConflict() {
				fmt.Fprintf(out, "%s has no conflicts\n", candidate)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "ID\tOWNER\tSTART\tEND\n")
			for _, c := range res.Conflicts {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Owner, c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file of windows ('-' for stdin)")
	cmd.Flags().StringVar(&candidate, "candidate", "", "ID of the window to check")
	cmd.Flags().StringVar(&owner, "owner", "", "only compare windows of this owner")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}
