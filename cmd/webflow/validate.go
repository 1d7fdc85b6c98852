package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/webflow/internal/cli"
	"github.com/aretw0/webflow/internal/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flow...]",
	Short: "Check flow definitions for consistency",
	Long: `Loads every flow in the definitions directory, or only the named ones, and
reports definition errors, unresolvable subflows, unreachable states and
view states without transitions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		locator, err := cli.NewLocator(cfg, logger)
		if err != nil {
			return err
		}

		report, err := validator.Validate(cmd.Context(), locator, args...)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, issue := range report.Issues {
			fmt.Fprintln(out, issue)
		}
		if err := report.Err(); err != nil {
			return fmt.Errorf("validation failed: %w", validator.ErrInvalidGraph)
		}
		fmt.Fprintf(out, "%d flows are valid\n", len(report.Flows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
