package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/webflow/internal/cli"
	"github.com/aretw0/webflow/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph <flow>",
	Short: "Export a flow as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart (graph TD) of a flow. With --execution the
states visited by a stored execution and its current state are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		ctx := cmd.Context()

		key, _ := cmd.Flags().GetString("execution")
		if key == "" {
			locator, err := cli.NewLocator(cfg, logger)
			if err != nil {
				return err
			}
			flow, err := locator.GetFlow(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(flow, nil))
			return nil
		}

		stack, err := cli.NewStack(cfg, logger, cli.StackOptions{})
		if err != nil {
			return err
		}
		defer stack.Close()

		flow, err := stack.Locator.GetFlow(ctx, args[0])
		if err != nil {
			return err
		}
		exec, err := stack.Engine.Restore(ctx, key)
		if err != nil {
			return err
		}
		overlay := &graph.Overlay{}
		for _, s := range exec.Sessions() {
			if s.FlowID() == flow.ID() {
				overlay.VisitedStates = append(overlay.VisitedStates, s.StateID())
			}
		}
		if active := exec.ActiveSession(); active != nil && active.FlowID() == flow.ID() {
			overlay.CurrentState = active.StateID()
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(flow, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("execution", "", "Highlight the position of a stored execution")
}
