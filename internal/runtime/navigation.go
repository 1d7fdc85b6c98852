package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/pkg/domain"
)

// ErrTransitionVetoed is returned when a transition action reports a failure
// outcome and the source state cannot be redisplayed.
var ErrTransitionVetoed = errors.New("transition vetoed")

var criteriaTiers = []domain.CriteriaKind{
	domain.CriteriaEventID,
	domain.CriteriaExpression,
	domain.CriteriaWildcard,
}

// handleEvent matches the last event against a paused state and executes the
// selected transition.
func (e *Execution) handleEvent(ctx context.Context, rc *requestContext, state *domain.State) (*domain.Response, error) {
	t, err := e.findTransition(ctx, rc, state)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, e.noMatch(state, eventIDs(rc.lastEvent))
	}
	return e.execute(ctx, rc, state, t)
}

// findTransition looks in the state's own transitions, then in the active
// flow's global transitions. Within each set, event id criteria are tried
// before expressions and expressions before the wildcard.
func (e *Execution) findTransition(ctx context.Context, rc *requestContext, state *domain.State) (*domain.Transition, error) {
	t, err := matchTransition(ctx, rc, state.Transitions)
	if err != nil || t != nil {
		return t, err
	}
	if flow := rc.ActiveFlow(); flow != nil {
		return matchTransition(ctx, rc, flow.GlobalTransitions())
	}
	return nil, nil
}

func matchTransition(ctx context.Context, rc domain.RequestContext, transitions []*domain.Transition) (*domain.Transition, error) {
	for _, tier := range criteriaTiers {
		for _, t := range transitions {
			c := t.Criteria()
			if c.Kind() != tier {
				continue
			}
			ok, err := c.Matches(ctx, rc)
			if err != nil {
				return nil, fmt.Errorf("evaluating criteria '%s': %w", c, err)
			}
			if ok {
				return t, nil
			}
		}
	}
	return nil, nil
}

func (e *Execution) noMatch(state *domain.State, ids []string) error {
	var criteria []string
	for _, t := range state.Transitions {
		criteria = append(criteria, t.Criteria().String())
	}
	flowID := ""
	if s := e.stack.Peek(); s != nil {
		flowID = s.flowID
		for _, t := range s.flow.GlobalTransitions() {
			criteria = append(criteria, t.Criteria().String())
		}
	}
	return &domain.NoMatchingTransitionError{
		FlowID:   flowID,
		StateID:  state.ID,
		EventIDs: ids,
		Criteria: criteria,
	}
}

// execute traverses one edge out of source.
func (e *Execution) execute(ctx context.Context, rc *requestContext, source *domain.State, t *domain.Transition) (*domain.Response, error) {
	targetID := ""
	if t.To != nil {
		id, err := t.To.Resolve(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("resolving target of %s: %w", t, err)
		}
		targetID = id
	}

	for _, a := range t.Actions {
		ev, err := e.invoke(ctx, rc, a)
		if err != nil {
			return nil, err
		}
		if ev != nil && (ev.ID == domain.EventError || ev.ID == domain.EventNo) {
			e.logger.Debug("transition vetoed by action",
				logging.StateID(source.ID),
				"action", domain.ActionName(a),
			)
			if source.CanPause() {
				return e.render(rc, source), nil
			}
			return nil, fmt.Errorf("%w: %s returned '%s'", ErrTransitionVetoed, domain.ActionName(a), ev.ID)
		}
	}

	e.notify("TransitionExecuting", func(l domain.Listener) { l.TransitionExecuting(ctx, rc, t) })

	if targetID == "" {
		if source.CanPause() {
			return e.render(rc, source), nil
		}
		targetID = source.ID
	}

	target, err := e.stack.Peek().flow.State(targetID)
	if err != nil {
		return nil, err
	}

	for _, a := range source.ExitActions {
		if _, err := e.invoke(ctx, rc, a); err != nil {
			return nil, err
		}
	}

	e.logger.Debug("transition",
		logging.StateID(source.ID),
		"target", target.ID,
		"criteria", t.Criteria().String(),
	)
	return e.enterState(ctx, rc, target)
}

// enterState moves the active session to state and runs the state's behavior.
func (e *Execution) enterState(ctx context.Context, rc *requestContext, state *domain.State) (*domain.Response, error) {
	sess := e.stack.Peek()

	if err := e.veto("StateEntering", func(l domain.Listener) error {
		return l.StateEntering(ctx, rc, state)
	}); err != nil {
		return nil, err
	}

	previous := sess.state
	sess.setState(state)

	if err := e.veto("StateEntered", func(l domain.Listener) error {
		return l.StateEntered(ctx, rc, previous, state)
	}); err != nil {
		return nil, err
	}

	for _, a := range state.EntryActions {
		if _, err := e.invoke(ctx, rc, a); err != nil {
			return nil, err
		}
	}

	if sess.status == domain.SessionStarting {
		sess.status = domain.SessionActive
	}

	switch state.Kind {
	case domain.StateAction:
		return e.enterAction(ctx, rc, state)
	case domain.StateView:
		return e.render(rc, state), nil
	case domain.StateSubflow:
		return e.enterSubflow(ctx, rc, state)
	case domain.StateDecision:
		return e.enterDecision(ctx, rc, state)
	case domain.StateEnd:
		return e.enterEnd(ctx, rc, state)
	default:
		return nil, fmt.Errorf("%w: unknown state kind '%s'", domain.ErrInvalidDefinition, state.Kind)
	}
}

// enterAction runs the state's actions as a chain of responsibility: the first
// outcome that matches a transition wins and the remaining actions are skipped.
func (e *Execution) enterAction(ctx context.Context, rc *requestContext, state *domain.State) (*domain.Response, error) {
	if len(state.Actions) == 0 {
		return nil, fmt.Errorf("%w: '%s'", domain.ErrNoActions, state.ID)
	}

	var ids []string
	for _, a := range state.Actions {
		ev, err := e.invoke(ctx, rc, a)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			continue
		}
		if ev.Source == "" {
			ev = domain.NewEvent(domain.ActionName(a), ev.ID, ev.Attributes)
		}
		rc.lastEvent = ev
		ids = append(ids, ev.ID)
		e.notify("EventSignaled", func(l domain.Listener) { l.EventSignaled(ctx, rc, ev) })

		t, err := e.findTransition(ctx, rc, state)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return e.execute(ctx, rc, state, t)
		}
		e.logger.Debug("action outcome unmatched, continuing chain",
			logging.StateID(state.ID),
			logging.EventID(ev.ID),
		)
	}
	return nil, e.noMatch(state, ids)
}

// enterDecision selects a transition right away from the current request.
func (e *Execution) enterDecision(ctx context.Context, rc *requestContext, state *domain.State) (*domain.Response, error) {
	t, err := e.findTransition(ctx, rc, state)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, e.noMatch(state, eventIDs(rc.lastEvent))
	}
	return e.execute(ctx, rc, state, t)
}

func (e *Execution) enterSubflow(ctx context.Context, rc *requestContext, state *domain.State) (*domain.Response, error) {
	flow, err := e.resolveSubflow(ctx, state.Subflow.FlowID)
	if err != nil {
		return nil, err
	}
	input := make(map[string]any)
	if err := domain.ApplyMappings(state.Subflow.Input, rc.Lookup, input); err != nil {
		return nil, fmt.Errorf("mapping input of subflow '%s': %w", flow.ID(), err)
	}
	return e.startSession(ctx, rc, flow, input)
}

func (e *Execution) enterEnd(ctx context.Context, rc *requestContext, state *domain.State) (*domain.Response, error) {
	sess := e.stack.Peek()
	output := make(map[string]any)
	if err := domain.ApplyMappings(state.Output, rc.Lookup, output); err != nil {
		return nil, fmt.Errorf("mapping output of '%s': %w", state.ID, err)
	}

	var final *domain.Response
	if sess.IsRoot() && state.View != "" {
		final = domain.NewResponse(sess.flowID, state, rc.Model(), true)
	}

	resp, err := e.endActiveSession(ctx, rc, state, output)
	if err != nil {
		return nil, err
	}
	if e.stack.IsEmpty() {
		return final, nil
	}
	return resp, nil
}

func (e *Execution) render(rc *requestContext, state *domain.State) *domain.Response {
	return domain.NewResponse(e.stack.Peek().flowID, state, rc.Model(), false)
}

// invoke runs one action. Actions that panic are treated as failing.
func (e *Execution) invoke(ctx context.Context, rc *requestContext, a domain.Action) (ev *domain.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = fmt.Errorf("action %s panicked: %w", domain.ActionName(a), rerr)
				return
			}
			err = fmt.Errorf("action %s panicked: %v", domain.ActionName(a), r)
		}
	}()
	return a.Execute(ctx, rc)
}

func eventIDs(ev *domain.Event) []string {
	if ev == nil {
		return nil
	}
	return []string{ev.ID}
}
