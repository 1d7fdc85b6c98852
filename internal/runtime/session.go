package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/pkg/domain"
)

// startSession pushes a new session for flow and enters its start state.
// Flow variables are created before input is applied, so input wins.
func (e *Execution) startSession(ctx context.Context, rc *requestContext, flow *domain.Flow, input map[string]any) (*domain.Response, error) {
	if input == nil {
		input = make(map[string]any)
	}

	sess := newSession(&e.stack, flow)
	sess.status = domain.SessionStarting
	e.stack.Push(sess)

	if err := e.veto("SessionStarting", func(l domain.Listener) error {
		return l.SessionStarting(ctx, rc, sess, input)
	}); err != nil {
		return nil, err
	}

	for _, v := range flow.Variables() {
		var value any
		if v.Init != nil {
			value = v.Init()
		}
		sess.scope.Put(v.Name, value)
	}
	sess.scope.PutAll(input)

	e.logger.Debug("session starting", logging.FlowID(flow.ID()), logging.Depth(e.stack.Len()))

	for _, a := range flow.StartActions() {
		if _, err := e.invoke(ctx, rc, a); err != nil {
			return nil, err
		}
	}
	resp, err := e.enterState(ctx, rc, flow.StartState())
	if err != nil {
		return nil, err
	}
	// A start state that ends the session never reports it as started.
	if sess.status == domain.SessionActive {
		e.logger.Debug("session started", logging.FlowID(sess.flowID), logging.Depth(e.stack.Len()))
		e.notify("SessionStarted", func(l domain.Listener) { l.SessionStarted(ctx, rc, sess) })
	}
	return resp, nil
}

// endActiveSession pops the active session. When a parent remains, the parent's
// subflow state resumes with an event named after endState.
func (e *Execution) endActiveSession(ctx context.Context, rc *requestContext, endState *domain.State, output map[string]any) (*domain.Response, error) {
	sess := e.stack.Peek()

	if err := e.veto("SessionEnding", func(l domain.Listener) error {
		return l.SessionEnding(ctx, rc, sess, output)
	}); err != nil {
		return nil, err
	}
	for _, a := range sess.flow.EndActions() {
		if _, err := e.invoke(ctx, rc, a); err != nil {
			return nil, err
		}
	}

	e.stack.Pop()
	sess.status = domain.SessionEnded
	sess.scope.Seal()
	e.lastEnded = sess

	e.logger.Debug("session ended",
		logging.FlowID(sess.flowID),
		logging.StateID(endState.ID),
		logging.Depth(e.stack.Len()),
	)
	e.notify("SessionEnded", func(l domain.Listener) { l.SessionEnded(ctx, rc, sess, output) })

	if e.stack.IsEmpty() {
		e.outcome = domain.NewEvent(sess.flowID, endState.ID, output)
		e.logger.Debug("execution ended", logging.FlowID(sess.flowID), logging.EventID(endState.ID))
		return nil, nil
	}
	return e.resumeParent(ctx, rc, sess, endState, output)
}

func (e *Execution) resumeParent(ctx context.Context, rc *requestContext, child *FlowSession, endState *domain.State, output map[string]any) (*domain.Response, error) {
	parent := e.stack.Peek()
	state := parent.state
	if state == nil || state.Kind != domain.StateSubflow {
		return nil, fmt.Errorf("%w: parent of '%s' is not in a subflow state", domain.ErrInvalidDefinition, child.flowID)
	}

	mapped := make(map[string]any)
	lookup := func(key string) (any, bool) {
		v, ok := output[key]
		return v, ok
	}
	if err := domain.ApplyMappings(state.Subflow.Output, lookup, mapped); err != nil {
		return nil, fmt.Errorf("mapping output of subflow '%s': %w", child.flowID, err)
	}
	parent.scope.PutAll(mapped)

	ev := domain.NewEvent(child.flowID, endState.ID, output)
	rc.lastEvent = ev
	e.notify("EventSignaled", func(l domain.Listener) { l.EventSignaled(ctx, rc, ev) })

	t, err := e.findTransition(ctx, rc, state)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, e.noMatch(state, []string{ev.ID})
	}
	return e.execute(ctx, rc, state, t)
}

// resolveSubflow looks for id among the inline flows of the stacked sessions,
// innermost first, then asks the locator.
func (e *Execution) resolveSubflow(ctx context.Context, id string) (*domain.Flow, error) {
	sessions := e.stack.sessions
	for i := len(sessions) - 1; i >= 0; i-- {
		if f := sessions[i].flow; f != nil {
			if in, ok := f.InlineFlow(id); ok {
				return in, nil
			}
		}
	}
	return e.locate(ctx, id)
}

func (e *Execution) locate(ctx context.Context, id string) (*domain.Flow, error) {
	if e.flow != nil && e.flow.ID() == id {
		return e.flow, nil
	}
	if e.locator == nil {
		return nil, fmt.Errorf("%w: '%s' (no locator configured)", domain.ErrFlowNotFound, id)
	}
	flow, err := e.locator.GetFlow(ctx, id)
	if err != nil {
		return nil, err
	}
	return flow, nil
}
