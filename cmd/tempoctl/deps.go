package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muaviaUsmani/tempo/internal/config"
	"github.com/muaviaUsmani/tempo/internal/store"
	"github.com/muaviaUsmani/tempo/pkg/dependency"
)

func newDepsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Query the task dependency graph",
		Long: `Query dependency edges read from --file (a JSON array of
{"predecessor_id","successor_id","type","lag_days"}), or from the Redis
instance in the tempo configuration when no file is given.`,
	}
	cmd.PersistentFlags().StringVarP(&file, "file", "f", "", "JSON file of edges ('-' for stdin)")

	traverse := func(use, short string, walk func(string, []dependency.Edge) dependency.Set) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <task-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				edges, err := loadEdges(cmd, file)
				if err != nil {
					return err
				}
				for _, id := range walk(args[0], edges).Sorted() {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			},
		}
	}

	cycleCmd := &cobra.Command{
		Use:   "cycle",
		Short: "List the tasks that lie on a dependency cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			edges, err := loadEdges(cmd, file)
			if err != nil {
				return err
			}
			onCycle := dependency.FindCycle(edges)
			if len(onCycle) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no cycle")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cycle: %s\n", strings.Join(onCycle, ", "))
			return nil
		},
	}

	cmd.AddCommand(
		traverse("ancestors", "List every task the given task transitively depends on", dependency.AllAncestors),
		traverse("descendants", "List every task that transitively depends on the given task", dependency.AllDescendants),
		cycleCmd,
	)
	return cmd
}

func loadEdges(cmd *cobra.Command, file string) ([]dependency.Edge, error) {
	if file != "" {
		data, err := readInput(cmd, nil, file)
		if err != nil {
			return nil, err
		}
		var edges []dependency.Edge
		if err := json.Unmarshal(data, &edges); err != nil {
			return nil, fmt.Errorf("parsing edges: %w", err)
		}
		for _, e := range edges {
			if _, err := dependency.AddEdge(e.PredecessorID, e.SuccessorID, e.Type, e.LagDays); err != nil {
				return nil, fmt.Errorf("edge %s -> %s: %w", e.PredecessorID, e.SuccessorID, err)
			}
		}
		return edges, nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := store.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return store.New(client, cfg.KeyPrefix, nil).ListEdges(ctx)
}
