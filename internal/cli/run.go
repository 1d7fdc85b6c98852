package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/webflow"
	"github.com/aretw0/webflow/internal/config"
	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/pkg/ports"
	"github.com/aretw0/webflow/pkg/runner"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	// FlowID defaults to the script's flow, then to DetermineEntryPoint.
	FlowID string
	// Input is a YAML or JSON mapping placed in the root flow scope.
	Input       string
	ScriptPath  string
	JSON        bool
	StopOnError bool
	// Watch reloads definitions when their documents change.
	Watch bool
	// MetricsOut receives the collected metrics after the run when set.
	MetricsOut io.Writer
}

// Run launches a flow and drives it from stdin, a JSON stream or a script.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts RunOptions, stdin io.Reader, stdout io.Writer) (*webflow.Result, error) {
	input, err := ParseInput(opts.Input)
	if err != nil {
		return nil, err
	}

	var script *runner.Script
	if opts.ScriptPath != "" {
		f, err := os.Open(opts.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open script: %w", err)
		}
		script, err = runner.LoadScript(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		if opts.FlowID == "" {
			opts.FlowID = script.Flow
		}
		for k, v := range script.Input {
			if _, set := input[k]; !set {
				input[k] = v
			}
		}
	}

	stack, err := NewStack(cfg, logger, StackOptions{Metrics: opts.MetricsOut != nil})
	if err != nil {
		return nil, err
	}
	defer stack.Close()

	if opts.FlowID == "" {
		if opts.FlowID, err = DetermineEntryPoint(ctx, stack.Locator, cfg.Definitions); err != nil {
			return nil, err
		}
	}

	if opts.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := WatchDefinitions(watchCtx, stack.Locator, logger); err != nil {
			return nil, err
		}
	}

	var handler runner.IOHandler
	switch {
	case script != nil:
		handler = runner.NewScriptHandler(script, stdout)
	case opts.JSON:
		handler = runner.NewJSONHandler(stdin, stdout)
	default:
		text := runner.NewTextHandler(stdin, stdout)
		if !isTerminal(stdin) {
			text.Prompt = ""
		}
		handler = text
	}

	r := runner.NewRunner(handler,
		runner.WithLogger(logger),
		runner.WithStopOnError(opts.StopOnError || script != nil),
	)
	res, runErr := r.Run(ctx, stack.Engine, opts.FlowID, input)

	if opts.MetricsOut != nil {
		if err := WriteMetrics(opts.MetricsOut, stack.Registry); err != nil {
			logger.Warn("failed to write metrics", logging.Error(err))
		}
	}
	return res, runErr
}

// ParseInput decodes a YAML or JSON mapping. Empty text is an empty map.
func ParseInput(text string) (map[string]any, error) {
	input := make(map[string]any)
	if strings.TrimSpace(text) == "" {
		return input, nil
	}
	if err := yaml.Unmarshal([]byte(text), &input); err != nil {
		return nil, fmt.Errorf("error parsing input: %w", err)
	}
	return input, nil
}

// entryPointCandidates are tried in order when a definitions directory holds
// more than one flow.
var entryPointCandidates = []string{"main", "index", "start"}

// DetermineEntryPoint picks the flow to run when none was named: the only
// flow, else main, index or start, else the flow named like the directory.
func DetermineEntryPoint(ctx context.Context, lister ports.FlowLister, dir string) (string, error) {
	ids, err := lister.ListFlows(ctx)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no flows found in %s", dir)
	case 1:
		return ids[0], nil
	}
	candidates := entryPointCandidates
	if abs, err := filepath.Abs(dir); err == nil {
		candidates = append(slices.Clone(candidates), filepath.Base(abs))
	}
	for _, c := range candidates {
		if slices.Contains(ids, c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("cannot choose a flow among %s; pass one", strings.Join(ids, ", "))
}
