package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/webflow"
	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/pkg/domain"
)

// Runner handles the request loop of an Engine using the provided IO.
type Runner struct {
	Handler IOHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// StopOnError ends the run on the first failed request. Otherwise the
	// failure is reported and the handler is asked for another event; the
	// execution is unchanged by a failed request.
	StopOnError bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.Logger = logger }
}

// WithStopOnError makes the first failed request end the run.
func WithStopOnError(stop bool) Option {
	return func(r *Runner) { r.StopOnError = stop }
}

// NewRunner creates a Runner over handler.
func NewRunner(handler IOHandler, opts ...Option) *Runner {
	r := &Runner{Handler: handler}
	for _, opt := range opts {
		opt(r)
	}
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	return r
}

// Run launches flowID and loops until the execution ends, the handler runs
// out of input, or ctx is done. It returns the last result seen.
func (r *Runner) Run(ctx context.Context, engine *webflow.Engine, flowID string, input map[string]any) (*webflow.Result, error) {
	if r.Handler == nil {
		return nil, errors.New("runner has no IO handler")
	}
	res, err := engine.Launch(ctx, flowID, input)
	if err != nil {
		return nil, fmt.Errorf("launch error: %w", err)
	}
	r.Logger.Debug("launched", logging.ExecutionKey(res.Key), logging.FlowID(flowID))

	for {
		if err := r.Handler.Output(ctx, res); err != nil {
			return res, fmt.Errorf("output error: %w", err)
		}
		if !res.Paused() {
			return res, nil
		}

		ev, err := r.next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return res, nil
			}
			return res, err
		}

		next, err := engine.Resume(ctx, res.Key, ev)
		if err != nil {
			if r.StopOnError || ctx.Err() != nil {
				return res, fmt.Errorf("resume error: %w", err)
			}
			r.Logger.Debug("request failed", logging.ExecutionKey(res.Key), logging.EventID(ev.ID), logging.Error(err))
			if err := r.Handler.SystemOutput(ctx, "error: "+err.Error()); err != nil {
				return res, err
			}
			continue
		}
		res = next
	}
}

func (r *Runner) next(ctx context.Context) (*domain.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev, err := r.Handler.Input(ctx)
		if err != nil {
			return nil, err
		}
		if ev != nil && ev.ID != "" {
			return ev, nil
		}
	}
}
