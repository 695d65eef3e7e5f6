package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muaviaUsmani/tempo/pkg/trigger"
)

func newCompileCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "compile [document]",
		Short: "Compile a recurrence document into a trigger expression",
		Long: `Compile a recurrence document such as
  {"type":"weekly","dayOfWeek":1,"hour":10,"minute":30}
given as an argument, with --file, or on stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(cmd, args, file)
			if err != nil {
				return err
			}

			r, err := trigger.DecodeRecurrence(doc)
			if err != nil {
				return err
			}
			expr, err := trigger.CompileTrigger(r)
			if err != nil {
				return err
			}

			if expr.IsZero() {
				fmt.Fprintln(cmd.OutOrStdout(), "(no trigger)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), expr)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the document from a file ('-' for stdin)")
	return cmd
}

func newOneShotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "oneshot <RFC3339 instant>",
		Short: "Compile a one-shot trigger expression for an instant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("parsing instant: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), trigger.CompileOneShot(at))
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <expression>",
		Short: "Check the structure of a trigger expression",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := strings.Join(args, " ")
			if err := trigger.ValidateExpression(expr); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
}

func newNextCmd() *cobra.Command {
	var (
		after string
		tz    string
		count int
	)

	cmd := &cobra.Command{
		Use:   "next <expression>",
		Short: "Print the next fire instants of a trigger expression",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := trigger.Expression(strings.Join(args, " "))

			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("loading timezone: %w", err)
			}

			from := time.Now()
			if after != "" {
				if from, err = time.Parse(time.RFC3339, after); err != nil {
					return fmt.Errorf("parsing --after: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				next, ok, err := trigger.NextFire(expr, from, loc)
				if err != nil {
					return err
				}
				if !ok {
					if i == 0 {
						fmt.Fprintln(out, "(never fires)")
					}
					return nil
				}
				fmt.Fprintln(out, next.Format(time.RFC3339))
				from = next
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&after, "after", "", "start searching after this RFC3339 instant (default: now)")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "IANA timezone the expression is evaluated in")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of instants to print")
	return cmd
}

// readInput returns the single argument, the file contents, or stdin
func readInput(cmd *cobra.Command, args []string, file string) ([]byte, error) {
	switch {
	case len(args) == 1:
		return []byte(args[0]), nil
	case file == "" || file == "-":
		return io.ReadAll(cmd.InOrStdin())
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		return data, nil
	}
}
