package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/webflow/internal/runtime"
	"github.com/aretw0/webflow/pkg/domain"
)

// captureRequest records the recovery attributes visible to a state's entry actions.
func captureRequest(into map[string]any) domain.Action {
	return domain.ActionFunc(func(_ context.Context, rc domain.RequestContext) (*domain.Event, error) {
		for _, key := range []string{domain.StateExceptionKey, domain.RootCauseExceptionKey} {
			if v, ok := rc.RequestScope().Get(key); ok {
				into[key] = v
			}
		}
		return nil, nil
	})
}

func TestRecovery_ReroutesToEndState(t *testing.T) {
	captured := make(map[string]any)
	endState := end("end")
	endState.EntryActions = []domain.Action{captureRequest(captured)}

	flow := mustFlow(t, domain.FlowConfig{
		ID: "F",
		States: []*domain.State{
			actionState("S1", []domain.Action{fails("boom")}, always("next")),
			view("next"),
			endState,
		},
		ExceptionHandlers: []*domain.ExceptionHandler{domain.HandleAs[*TestError]("end")},
	})
	exec := runtime.New(flow)

	resp, err := exec.Start(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.False(t, exec.IsActive())
	assert.Equal(t, "end", exec.Outcome().ID)

	require.Contains(t, captured, domain.StateExceptionKey)
	require.Contains(t, captured, domain.RootCauseExceptionKey)

	stateErr, ok := captured[domain.StateExceptionKey].(*domain.FlowExecutionError)
	require.True(t, ok)
	assert.Equal(t, "F", stateErr.FlowID)
	assert.Equal(t, "S1", stateErr.StateID)

	root, ok := captured[domain.RootCauseExceptionKey].(*TestError)
	require.True(t, ok)
	assert.Equal(t, "boom", root.Reason)
}

func TestRecovery_FirstRegisteredHandlerWins(t *testing.T) {
	build := func(handlers ...*domain.ExceptionHandler) *domain.Flow {
		return mustFlow(t, domain.FlowConfig{
			ID: "F",
			States: []*domain.State{
				actionState("S1", []domain.Action{fails("boom")}, always("specific")),
				view("specific"),
				view("general"),
			},
			ExceptionHandlers: handlers,
		})
	}

	t.Run("exact type registered first", func(t *testing.T) {
		flow := build(
			domain.HandleAs[*TestError]("specific"),
			domain.HandleAs[temporaryError]("general"),
		)
		resp, err := runtime.New(flow).Start(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "specific", resp.StateID)
	})

	t.Run("supertype registered first", func(t *testing.T) {
		flow := build(
			domain.HandleAs[temporaryError]("general"),
			domain.HandleAs[*TestError]("specific"),
		)
		resp, err := runtime.New(flow).Start(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "general", resp.StateID, "registration order decides, not type distance")
	})
}

func TestRecovery_StateHandlersBeforeFlowHandlers(t *testing.T) {
	s1 := actionState("S1", []domain.Action{fails("boom")}, always("unused"))
	s1.ExceptionHandlers = []*domain.ExceptionHandler{domain.HandleAny("fromState")}

	flow := mustFlow(t, domain.FlowConfig{
		ID:                "F",
		States:            []*domain.State{s1, view("unused"), view("fromState"), view("fromFlow")},
		ExceptionHandlers: []*domain.ExceptionHandler{domain.HandleAny("fromFlow")},
	})

	resp, err := runtime.New(flow).Start(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "fromState", resp.StateID)
}

func TestRecovery_UnhandledLeavesExecutionWhereItWas(t *testing.T) {
	ctx := context.Background()
	broken := true
	flaky := domain.ActionFunc(func(context.Context, domain.RequestContext) (*domain.Event, error) {
		if broken {
			return nil, &TestError{Reason: "db down"}
		}
		return domain.Success(), nil
	})
	flow := mustFlow(t, domain.FlowConfig{
		ID: "F",
		States: []*domain.State{
			view("form", on("submit", "save")),
			actionState("save", []domain.Action{
				domain.ActionFunc(func(_ context.Context, rc domain.RequestContext) (*domain.Event, error) {
					rc.FlowScope().Put("dirty", true)
					return nil, nil
				}),
				flaky,
			}, on(domain.EventSuccess, "done")),
			view("done"),
		},
	})
	exec := runtime.New(flow)
	_, err := exec.Start(ctx, nil)
	require.NoError(t, err)

	_, err = exec.SignalEvent(ctx, signal("submit"))
	var testErr *TestError
	require.ErrorAs(t, err, &testErr)
	var fe *domain.FlowExecutionError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "save", fe.StateID)

	assert.Equal(t, "form", exec.ActiveSession().StateID(), "current state is unchanged")
	assert.False(t, exec.ActiveSession().Scope().Contains("dirty"), "scope writes of the failed request are undone")

	broken = false
	resp, err := exec.SignalEvent(ctx, signal("submit"))
	require.NoError(t, err)
	assert.Equal(t, "done", resp.StateID)
}

func TestRecovery_FailureWhileHandlingIsHandledAgain(t *testing.T) {
	first := view("first")
	first.EntryActions = []domain.Action{fails("second failure")}

	flow := mustFlow(t, domain.FlowConfig{
		ID: "F",
		States: []*domain.State{
			actionState("S1", []domain.Action{fails("boom")}, always("unused")),
			view("unused"),
			first,
			view("last"),
		},
		ExceptionHandlers: []*domain.ExceptionHandler{
			{
				Name: "first failure",
				Matches: func(err error) bool {
					var te *TestError
					return asTestError(err, &te) && te.Reason == "boom"
				},
				TargetState: "first",
			},
			domain.HandleAs[*TestError]("last"),
		},
	})

	resp, err := runtime.New(flow).Start(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "last", resp.StateID)
}

func TestRecovery_HandlingDepthIsBounded(t *testing.T) {
	loop := view("loop")
	loop.EntryActions = []domain.Action{fails("again")}

	flow := mustFlow(t, domain.FlowConfig{
		ID: "F",
		States: []*domain.State{
			actionState("S1", []domain.Action{fails("boom")}, always("loop")),
			loop,
		},
		ExceptionHandlers: []*domain.ExceptionHandler{domain.HandleAs[*TestError]("loop")},
	})

	_, err := runtime.New(flow, runtime.WithMaxHandlingDepth(3)).Start(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded depth 3")
}

func TestRecovery_ParentHandlesChildFailure(t *testing.T) {
	ctx := context.Background()
	child := mustFlow(t, domain.FlowConfig{
		ID: "child",
		States: []*domain.State{
			view("ask", on("go", "work")),
			actionState("work", []domain.Action{fails("child broke")}, always("ask")),
		},
	})
	sub := subflow("delegate", "child", on("ask", "unused"))
	sub.ExceptionHandlers = []*domain.ExceptionHandler{domain.HandleAs[*TestError]("failed")}

	var ended []string
	parent := mustFlow(t, domain.FlowConfig{
		ID:          "parent",
		States:      []*domain.State{sub, view("unused"), view("failed")},
		InlineFlows: []*domain.Flow{child},
	})
	exec := runtime.New(parent, runtime.WithListeners(&domain.LifecycleHooks{
		OnSessionEnded: func(_ context.Context, _ domain.RequestContext, s domain.Session, _ map[string]any) {
			ended = append(ended, s.FlowID())
		},
	}))

	resp, err := exec.Start(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "ask", resp.StateID)
	assert.Equal(t, "child", resp.FlowID)

	resp, err = exec.SignalEvent(ctx, signal("go"))
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.StateID)
	assert.Equal(t, "parent", resp.FlowID)
	assert.Len(t, exec.Sessions(), 1)
	assert.Equal(t, []string{"child"}, ended)
}

func asTestError(err error, target **TestError) bool {
	te, ok := domain.RootCause(err).(*TestError)
	if ok {
		*target = te
	}
	return ok
}
