package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/pkg/domain"
)

// Snapshot captures the execution for persistence. Definitions are referenced
// by id; scopes are copied.
func (e *Execution) Snapshot() (*domain.Snapshot, error) {
	if e.inRequest {
		return nil, domain.ErrRequestInProgress
	}
	snap := &domain.Snapshot{
		Key:          e.key,
		FlowID:       e.flowID,
		Status:       e.Status(),
		Conversation: e.conversation.AsMap(),
		Flash:        e.flash.AsMap(),
		Outcome:      e.outcome,
		UpdatedAt:    e.now().UTC(),
	}
	for _, s := range e.stack.sessions {
		snap.Sessions = append(snap.Sessions, domain.SessionSnapshot{
			FlowID:  s.flowID,
			StateID: s.stateID,
			Status:  s.status,
			Scope:   s.scope.AsMap(),
		})
	}
	if top := e.stack.Peek(); top != nil {
		snap.StateID = top.stateID
	}
	return snap, nil
}

// FromSnapshot rebuilds an execution from its persisted form. Sessions carry
// their scopes and ids but are bound to definitions only by Restore, which
// SignalEvent calls on demand.
func FromSnapshot(snap *domain.Snapshot, opts ...Option) (*Execution, error) {
	if snap == nil {
		return nil, errors.New("snapshot is nil")
	}
	if snap.Key != "" {
		opts = append([]Option{WithKey(snap.Key)}, opts...)
	}
	e := newExecution(opts)
	e.flowID = snap.FlowID
	e.started = snap.Status != domain.ExecutionCreated
	e.conversation.PutAll(snap.Conversation)
	e.flash.PutAll(snap.Flash)
	e.outcome = snap.Outcome

	for _, ss := range snap.Sessions {
		if ss.FlowID == "" || ss.StateID == "" {
			return nil, &domain.RestoreError{FlowID: ss.FlowID, StateID: ss.StateID, Err: errors.New("incomplete session snapshot")}
		}
		s := &FlowSession{
			flowID:  ss.FlowID,
			stateID: ss.StateID,
			status:  ss.Status,
			scope:   domain.ScopeFrom(ss.Scope),
		}
		e.stack.Push(s)
	}
	e.restored = e.stack.IsEmpty()
	return e, nil
}

// Restored reports whether every session is bound to its definitions.
func (e *Execution) Restored() bool { return e.restored }

// Restore re-resolves the flow and state of every session against the current
// definitions. Sessions already bound are left alone, so calling it again is a
// no-op. Flows are looked up among the inline flows of the sessions below
// first, then through the locator.
func (e *Execution) Restore(ctx context.Context) error {
	if e.restored {
		return nil
	}
	for i, s := range e.stack.sessions {
		if s.restored {
			continue
		}
		flow, err := e.restoreFlow(ctx, i, s.flowID)
		if err != nil {
			return &domain.RestoreError{FlowID: s.flowID, StateID: s.stateID, Err: err}
		}
		state, err := flow.State(s.stateID)
		if err != nil {
			return &domain.RestoreError{FlowID: s.flowID, StateID: s.stateID, Err: err}
		}
		s.flow = flow
		s.state = state
		s.restored = true
		if i == 0 {
			e.flow = flow
		}
	}
	e.restored = true
	e.logger.Debug("execution restored", logging.FlowID(e.flowID), logging.Depth(e.stack.Len()))
	return nil
}

func (e *Execution) restoreFlow(ctx context.Context, level int, id string) (*domain.Flow, error) {
	for i := level - 1; i >= 0; i-- {
		if f := e.stack.sessions[i].flow; f != nil {
			if in, ok := f.InlineFlow(id); ok {
				return in, nil
			}
		}
	}
	if e.locator == nil {
		return nil, fmt.Errorf("%w: '%s' (no locator configured)", domain.ErrFlowNotFound, id)
	}
	return e.locator.GetFlow(ctx, id)
}
