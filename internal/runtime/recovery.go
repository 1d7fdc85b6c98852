package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/pkg/domain"
)

// handleException routes a failure to the first matching exception handler.
//
// Handlers are looked up from the active session downwards: at each level the
// current state's handlers are tried before the flow's, in registration order.
// Sessions above the handling level are discarded. Configuration failures are
// never handled. A failure raised while entering the recovery state is handled
// again, up to the configured depth.
func (e *Execution) handleException(ctx context.Context, rc *requestContext, err error, depth int) (*domain.Response, error) {
	fe := e.wrapFailure(err)
	e.notify("ExceptionThrown", func(l domain.Listener) { l.ExceptionThrown(ctx, rc, fe) })

	if domain.IsConfigurationFailure(fe) {
		e.logger.Debug("configuration failure is not recoverable", logging.Error(fe))
		return nil, fe
	}
	if depth >= e.maxDepth {
		return nil, fmt.Errorf("exception handling exceeded depth %d: %w", e.maxDepth, fe)
	}

	// Sessions that never reached their start state cannot handle anything.
	for top := e.stack.Peek(); top != nil && top.state == nil; top = e.stack.Peek() {
		e.discard(ctx, rc, top)
	}

	for level := e.stack.Len() - 1; level >= 0; level-- {
		sess := e.stack.sessions[level]
		handler := domain.FindHandler(sess.state.ExceptionHandlers, fe)
		if handler == nil {
			handler = domain.FindHandler(sess.flow.ExceptionHandlers(), fe)
		}
		if handler == nil {
			continue
		}

		for e.stack.Len() > level+1 {
			e.discard(ctx, rc, e.stack.Peek())
		}
		target, serr := sess.flow.State(handler.TargetState)
		if serr != nil {
			return nil, serr
		}

		e.logger.Debug("exception handled",
			logging.FlowID(sess.flowID),
			logging.StateID(sess.stateID),
			"handler", handler.Name,
			"target", target.ID,
			logging.Error(fe),
		)
		rc.request.Put(domain.StateExceptionKey, fe)
		rc.request.Put(domain.RootCauseExceptionKey, domain.RootCause(fe))
		e.notify("ExceptionHandled", func(l domain.Listener) { l.ExceptionHandled(ctx, rc, fe, handler) })

		resp, herr := e.enterState(ctx, rc, target)
		if herr != nil {
			return e.handleException(ctx, rc, herr, depth+1)
		}
		return resp, nil
	}
	return nil, fe
}

// wrapFailure records where err surfaced unless it already carries a location.
func (e *Execution) wrapFailure(err error) error {
	var fe *domain.FlowExecutionError
	if errors.As(err, &fe) {
		return err
	}
	wrapped := &domain.FlowExecutionError{FlowID: e.flowID, Err: err}
	if s := e.stack.Peek(); s != nil {
		wrapped.FlowID = s.flowID
		wrapped.StateID = s.stateID
	}
	return wrapped
}

// discard pops a session that ends abnormally: no end actions run and no
// output is produced.
func (e *Execution) discard(ctx context.Context, rc *requestContext, sess *FlowSession) {
	e.stack.Pop()
	wasActive := sess.status == domain.SessionActive
	sess.status = domain.SessionEnded
	sess.scope.Seal()
	e.logger.Debug("session discarded", logging.FlowID(sess.flowID), logging.StateID(sess.stateID))
	if wasActive {
		e.notify("SessionEnded", func(l domain.Listener) { l.SessionEnded(ctx, rc, sess, nil) })
	}
}
