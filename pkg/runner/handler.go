package runner

import (
	"context"

	"github.com/aretw0/webflow"
	"github.com/aretw0/webflow/pkg/domain"
)

// EventSource is the source recorded on events read by handlers.
const EventSource = "runner"

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI), JSON (structured) and scripted modes.
type IOHandler interface {
	// Output presents the result of a request.
	Output(ctx context.Context, res *webflow.Result) error

	// Input reads the next event. io.EOF ends the run.
	Input(ctx context.Context) (*domain.Event, error)

	// SystemOutput presents a meta-message, such as a failed request.
	SystemOutput(ctx context.Context, msg string) error
}
