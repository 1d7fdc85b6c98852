package cli

import (
	"context"
	"log/slog"

	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/registry"
)

// BuiltinActions returns the actions flow documents can name when run from
// the command line:
//
//	success  signals "success"
//	error    signals "error"
//	collect  copies the attributes of the last event into flow scope
//	log      logs the current position at info level
func BuiltinActions(logger *slog.Logger) *registry.Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := registry.NewRegistry()
	r.RegisterFunc("success", func(context.Context, domain.RequestContext) (*domain.Event, error) {
		return domain.Success(), nil
	})
	r.RegisterFunc("error", func(context.Context, domain.RequestContext) (*domain.Event, error) {
		return domain.Failure(), nil
	})
	r.RegisterFunc("collect", func(_ context.Context, rc domain.RequestContext) (*domain.Event, error) {
		if ev := rc.LastEvent(); ev != nil {
			rc.FlowScope().PutAll(ev.Attributes)
		}
		return domain.Success(), nil
	})
	r.RegisterFunc("log", func(_ context.Context, rc domain.RequestContext) (*domain.Event, error) {
		attrs := []any{logging.ExecutionKey(rc.ExecutionKey())}
		if s := rc.ActiveSession(); s != nil {
			attrs = append(attrs, logging.FlowID(s.FlowID()), logging.StateID(s.StateID()))
		}
		if ev := rc.LastEvent(); ev != nil {
			attrs = append(attrs, logging.EventID(ev.ID))
		}
		logger.Info("flow log action", attrs...)
		return domain.Success(), nil
	})
	return r
}
