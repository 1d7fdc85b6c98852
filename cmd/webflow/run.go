package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/webflow/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run [flow]",
	Short: "Run a flow interactively",
	Long: `Launches a flow and drives it from standard input. Each line is an event id
followed by optional key=value attributes. With --json input and output are
JSON Lines; with --script the events of a YAML script are replayed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		opts := cli.RunOptions{}
		if len(args) > 0 {
			opts.FlowID = args[0]
		}
		opts.Input, _ = cmd.Flags().GetString("input")
		opts.ScriptPath, _ = cmd.Flags().GetString("script")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.StopOnError, _ = cmd.Flags().GetBool("stop-on-error")
		opts.Watch, _ = cmd.Flags().GetBool("watch")
		if metrics, _ := cmd.Flags().GetBool("metrics"); metrics {
			opts.MetricsOut = cmd.ErrOrStderr()
		}
		if opts.JSON && opts.ScriptPath != "" {
			return errors.New("--json and --script cannot be used together")
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		res, err := cli.Run(ctx, cfg, logger, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		if sig := ctx.Signal(); sig != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "interrupted by %s\n", sig)
			return nil
		}
		if err != nil {
			return err
		}
		if res.Paused() {
			fmt.Fprintf(cmd.ErrOrStderr(), "execution %s paused\n", res.Key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("input", "", "Initial input as a YAML or JSON mapping")
	runCmd.Flags().String("script", "", "Replay the events of a YAML script")
	runCmd.Flags().Bool("json", false, "Read and write JSON Lines")
	runCmd.Flags().Bool("stop-on-error", false, "End the run on the first failed request")
	runCmd.Flags().BoolP("watch", "w", false, "Reload definitions when their documents change")
	runCmd.Flags().Bool("metrics", false, "Print Prometheus metrics to stderr after the run")
}
