package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/pkg/domain"
)

// Logger is a listener that writes execution lifecycle records.
// Session boundaries and handled failures are logged at Info, raised
// failures at Warn, and state movement at Debug.
type Logger struct {
	domain.NopListener
	log *slog.Logger
}

// NewLogger creates a Logger. A nil logger discards everything.
func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = logging.NewNop()
	}
	return &Logger{log: l}
}

func (l *Logger) with(rc domain.RequestContext) *slog.Logger {
	return l.log.With(logging.ExecutionKey(rc.ExecutionKey()))
}

func (l *Logger) SessionStarted(ctx context.Context, rc domain.RequestContext, s domain.Session) {
	l.with(rc).InfoContext(ctx, "session started", logging.FlowID(s.FlowID()), "root", s.IsRoot())
}

func (l *Logger) SessionEnded(ctx context.Context, rc domain.RequestContext, s domain.Session, output map[string]any) {
	l.with(rc).InfoContext(ctx, "session ended",
		logging.FlowID(s.FlowID()),
		logging.StateID(s.StateID()),
		"output", len(output),
	)
}

func (l *Logger) EventSignaled(ctx context.Context, rc domain.RequestContext, ev *domain.Event) {
	l.with(rc).DebugContext(ctx, "event signaled", logging.FlowID(activeFlowID(rc)), logging.EventID(ev.ID))
}

func (l *Logger) StateEntered(ctx context.Context, rc domain.RequestContext, previous, state *domain.State) error {
	attrs := []any{logging.FlowID(activeFlowID(rc)), logging.StateID(state.ID)}
	if previous != nil {
		attrs = append(attrs, "from", previous.ID)
	}
	l.with(rc).DebugContext(ctx, "state entered", attrs...)
	return nil
}

func (l *Logger) Paused(ctx context.Context, rc domain.RequestContext, resp *domain.Response) {
	l.with(rc).DebugContext(ctx, "paused", logging.FlowID(resp.FlowID), logging.StateID(resp.StateID), "view", resp.View)
}

func (l *Logger) ExceptionThrown(ctx context.Context, rc domain.RequestContext, err error) {
	l.with(rc).WarnContext(ctx, "exception thrown", logging.FlowID(activeFlowID(rc)), logging.Error(err))
}

func (l *Logger) ExceptionHandled(ctx context.Context, rc domain.RequestContext, err error, h *domain.ExceptionHandler) {
	l.with(rc).InfoContext(ctx, "exception handled",
		logging.FlowID(activeFlowID(rc)),
		"handler", h.String(),
		"target", h.TargetState,
		logging.Error(err),
	)
}
