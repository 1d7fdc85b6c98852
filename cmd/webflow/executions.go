package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/webflow/internal/cli"
	"github.com/aretw0/webflow/pkg/runner"
	"github.com/aretw0/webflow/pkg/session"
)

var executionsCmd = &cobra.Command{
	Use:     "executions",
	Aliases: []string{"exec"},
	Short:   "Manage stored executions",
	Long:    `List, inspect, resume and remove executions kept by the configured store.`,
}

var executionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored executions",
	RunE: withStack(func(cmd *cobra.Command, stack *cli.Stack, _ []string) error {
		sums, err := stack.Engine.Executions(cmd.Context())
		if errors.Is(err, session.ErrSummariesUnsupported) {
			keys, err := stack.Store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		}
		if err != nil {
			return err
		}
		if len(sums) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No stored executions.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tFLOW\tSTATE\tSTATUS\tDEPTH\tUPDATED")
		for _, s := range sums {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				s.Key, s.FlowID, s.StateID, s.Status, s.Depth, s.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	}),
}

var executionsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print the snapshot of an execution",
	Args:  cobra.ExactArgs(1),
	RunE: withStack(func(cmd *cobra.Command, stack *cli.Stack, args []string) error {
		snap, err := stack.Engine.Inspect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}),
}

var executionsResumeCmd = &cobra.Command{
	Use:   "resume <key> <event> [key=value...]",
	Short: "Signal one event to a stored execution",
	Args:  cobra.MinimumNArgs(2),
	RunE: withStack(func(cmd *cobra.Command, stack *cli.Stack, args []string) error {
		ev := runner.ParseEvent(strings.Join(args[1:], " "))
		res, err := stack.Engine.Resume(cmd.Context(), args[0], ev)
		if err != nil {
			return err
		}
		return runner.NewTextHandler(nil, cmd.OutOrStdout()).Output(cmd.Context(), res)
	}),
}

var executionsRmCmd = &cobra.Command{
	Use:   "rm <key>...",
	Short: "Remove one or more executions",
	Args:  cobra.MinimumNArgs(1),
	RunE: withStack(func(cmd *cobra.Command, stack *cli.Stack, args []string) error {
		var errs []error
		for _, key := range args {
			if err := stack.Engine.Delete(cmd.Context(), key); err != nil {
				errs = append(errs, fmt.Errorf("error removing '%s': %w", key, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed execution '%s'\n", key)
		}
		return errors.Join(errs...)
	}),
}

// withStack runs fn with an engine built from the command's configuration.
func withStack(fn func(*cobra.Command, *cli.Stack, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		stack, err := cli.NewStack(cfg, newLogger(cfg), cli.StackOptions{})
		if err != nil {
			return err
		}
		defer stack.Close()
		return fn(cmd, stack, args)
	}
}

func init() {
	rootCmd.AddCommand(executionsCmd)
	executionsCmd.AddCommand(executionsLsCmd, executionsShowCmd, executionsResumeCmd, executionsRmCmd)
}
