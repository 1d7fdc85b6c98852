package runtime_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/ports"
)

// TestError is the failure raised by test actions.
type TestError struct {
	Reason string
}

func (e *TestError) Error() string { return "test failure: " + e.Reason }

// Temporary makes TestError satisfy temporaryError.
func (e *TestError) Temporary() bool { return true }

// temporaryError plays the role of a supertype of TestError.
type temporaryError interface {
	error
	Temporary() bool
}

func on(event, to string) *domain.Transition {
	return &domain.Transition{On: domain.On(event), To: domain.To(to)}
}

func always(to string) *domain.Transition {
	return &domain.Transition{On: domain.Always(), To: domain.To(to)}
}

func view(id string, transitions ...*domain.Transition) *domain.State {
	return &domain.State{ID: id, Kind: domain.StateView, Transitions: transitions}
}

func end(id string) *domain.State {
	return &domain.State{ID: id, Kind: domain.StateEnd}
}

func actionState(id string, actions []domain.Action, transitions ...*domain.Transition) *domain.State {
	return &domain.State{ID: id, Kind: domain.StateAction, Actions: actions, Transitions: transitions}
}

func subflow(id, flowID string, transitions ...*domain.Transition) *domain.State {
	return &domain.State{
		ID:          id,
		Kind:        domain.StateSubflow,
		Subflow:     &domain.SubflowSpec{FlowID: flowID},
		Transitions: transitions,
	}
}

func returns(id string) domain.Action {
	return domain.ActionFunc(func(context.Context, domain.RequestContext) (*domain.Event, error) {
		return domain.Outcome(id), nil
	})
}

func fails(reason string) domain.Action {
	return domain.ActionFunc(func(context.Context, domain.RequestContext) (*domain.Event, error) {
		return nil, &TestError{Reason: reason}
	})
}

// counted wraps an action and counts its executions.
func counted(count *int, a domain.Action) domain.Action {
	return domain.ActionFunc(func(ctx context.Context, rc domain.RequestContext) (*domain.Event, error) {
		*count++
		return a.Execute(ctx, rc)
	})
}

func put(kind domain.ScopeKind, key string, value any) domain.Action {
	return domain.SetAttribute(kind, key, value)
}

func mustFlow(t *testing.T, cfg domain.FlowConfig) *domain.Flow {
	t.Helper()
	f, err := domain.NewFlow(cfg)
	require.NoError(t, err)
	return f
}

// locatorOf serves flows by id and counts lookups.
type locatorOf struct {
	flows map[string]*domain.Flow
	calls int
}

var _ ports.FlowDefinitionLocator = (*locatorOf)(nil)

func newLocator(flows ...*domain.Flow) *locatorOf {
	l := &locatorOf{flows: make(map[string]*domain.Flow)}
	for _, f := range flows {
		l.flows[f.ID()] = f
	}
	return l
}

func (l *locatorOf) GetFlow(_ context.Context, id string) (*domain.Flow, error) {
	l.calls++
	f, ok := l.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
	}
	return f, nil
}

func signal(id string) *domain.Event {
	return domain.Outcome(id)
}
