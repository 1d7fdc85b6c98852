package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/webflow/internal/config"
	"github.com/aretw0/webflow/internal/logging"
)

// defaultConfigFile is read from the working directory when --config is not set.
const defaultConfigFile = "webflow.yaml"

var rootCmd = &cobra.Command{
	Use:   "webflow",
	Short: "Webflow runs conversational flows defined in Markdown, YAML or JSON documents",
	Long: `Webflow loads flow definitions from a directory, checks and draws them,
and drives executions from the terminal, a JSON stream or a recorded script.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to the configuration file (default ./"+defaultConfigFile+" when present)")
	flags.String("dir", "", "Directory containing the flow definitions")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("store", "", "Execution store backend: memory, file or redis")
}

// loadConfig layers defaults, the config file, WEBFLOW_* variables and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		cfg = config.NewDefault()
	default:
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Definitions = dir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if backend, _ := cmd.Flags().GetString("store"); backend != "" {
		cfg.Store.Backend = backend
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.ParseLevel(cfg.LogLevel))
}
