package webflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/webflow"
	"github.com/aretw0/webflow/pkg/adapters/file"
	"github.com/aretw0/webflow/pkg/adapters/memory"
	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/dsl"
)

func sequentialKeys() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("exec-%d", n)
	}
}

func checkoutFlows(t *testing.T) *memory.Registry {
	t.Helper()
	payment := dsl.New("payment")
	payment.View("card").On("pay", "paid", domain.SetAttribute(domain.ScopeFlow, "receipt", "R-1"))
	payment.End("paid").Output(dsl.Map("receipt")...)

	checkout := dsl.New("checkout")
	checkout.View("cart").On("buy", "pay")
	checkout.Subflow("pay", "payment").
		Input(dsl.Map("total")...).
		Output(dsl.Map("receipt")...).
		On("paid", "done")
	checkout.End("done").Render("thanks").Output(dsl.Map("receipt")...)

	flows, err := dsl.Registry(checkout, payment)
	require.NoError(t, err)
	return flows
}

func TestEngine_LaunchAndResumeAcrossRequests(t *testing.T) {
	ctx := context.Background()
	store := file.New(t.TempDir())
	engine, err := webflow.New(checkoutFlows(t),
		webflow.WithStore(store),
		webflow.WithKeyGenerator(sequentialKeys()),
	)
	require.NoError(t, err)

	res, err := engine.Launch(ctx, "checkout", map[string]any{"total": 30})
	require.NoError(t, err)
	assert.Equal(t, "exec-1", res.Key)
	assert.True(t, res.Paused())
	assert.Equal(t, "cart", res.Response.StateID)

	res, err = engine.Resume(ctx, "exec-1", domain.Outcome("buy"))
	require.NoError(t, err)
	assert.Equal(t, "payment", res.Response.FlowID)
	assert.Equal(t, 30, res.Response.Model["total"])

	snap, err := engine.Inspect(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "card", snap.StateID)
	require.Len(t, snap.Sessions, 2)

	summaries, err := engine.Executions(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "checkout", summaries[0].FlowID)

	res, err = engine.Resume(ctx, "exec-1", domain.Outcome("pay"))
	require.NoError(t, err)
	assert.False(t, res.Paused())
	assert.Equal(t, domain.ExecutionEnded, res.Status)
	assert.Equal(t, "thanks", res.Response.View)
	assert.Equal(t, "R-1", res.Outcome.Attributes["receipt"])

	_, err = engine.Inspect(ctx, "exec-1")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound, "ended executions are removed")
	_, err = engine.Resume(ctx, "exec-1", domain.Outcome("pay"))
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
}

func TestEngine_EndedResultCarriesConversation(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("order")
	b.View("v1").On("submit", "done", domain.SetAttribute(domain.ScopeConversation, "receipt", "R-9"))
	b.End("done")
	flows, err := dsl.Registry(b)
	require.NoError(t, err)

	engine, err := webflow.New(flows, webflow.WithKeyGenerator(sequentialKeys()))
	require.NoError(t, err)
	res, err := engine.Launch(ctx, "order", nil)
	require.NoError(t, err)
	assert.Nil(t, res.Conversation)

	res, err = engine.Resume(ctx, res.Key, domain.Outcome("submit"))
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionEnded, res.Status)
	assert.Nil(t, res.Response)
	assert.Equal(t, map[string]any{"receipt": "R-9"}, res.Conversation)
}

func TestEngine_FileStoreKeepsIntegerTypes(t *testing.T) {
	ctx := context.Background()
	var seen any
	b := dsl.New("tally")
	b.View("ask").On("submit", "check")
	b.Action("check", domain.ActionFunc(func(_ context.Context, rc domain.RequestContext) (*domain.Event, error) {
		seen, _ = rc.FlowScope().Get("count")
		return domain.Success(), nil
	})).On(domain.EventSuccess, "done")
	b.View("done")
	flows, err := dsl.Registry(b)
	require.NoError(t, err)

	engine, err := webflow.New(flows, webflow.WithStore(file.New(t.TempDir())))
	require.NoError(t, err)
	res, err := engine.Launch(ctx, "tally", map[string]any{"count": 3})
	require.NoError(t, err)

	_, err = engine.Resume(ctx, res.Key, domain.Outcome("submit"))
	require.NoError(t, err)
	count, ok := seen.(int)
	require.True(t, ok, "count decoded as %T", seen)
	assert.Equal(t, 3, count)
}

func TestEngine_UnhandledFailureKeepsStoredExecution(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("form")
	b.View("edit").
		On("save", "saved", domain.ActionFunc(func(context.Context, domain.RequestContext) (*domain.Event, error) {
			return nil, errors.New("database unavailable")
		}))
	b.View("saved")
	flows, err := dsl.Registry(b)
	require.NoError(t, err)

	engine, err := webflow.New(flows, webflow.WithKeyGenerator(sequentialKeys()))
	require.NoError(t, err)
	res, err := engine.Launch(ctx, "form", nil)
	require.NoError(t, err)
	before, err := engine.Inspect(ctx, res.Key)
	require.NoError(t, err)

	_, err = engine.Resume(ctx, res.Key, domain.Outcome("save"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")

	after, err := engine.Inspect(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, before.StateID, after.StateID)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestEngine_ConcurrentResumesAreSerialized(t *testing.T) {
	ctx := context.Background()
	increment := domain.ActionFunc(func(_ context.Context, rc domain.RequestContext) (*domain.Event, error) {
		n, _ := rc.ConversationScope().Get("count")
		count, _ := n.(int)
		rc.ConversationScope().Put("count", count+1)
		return nil, nil
	})
	b := dsl.New("counter")
	b.View("tap").Refresh("inc", increment)
	flows, err := dsl.Registry(b)
	require.NoError(t, err)

	engine, err := webflow.New(flows)
	require.NoError(t, err)
	res, err := engine.Launch(ctx, "counter", nil)
	require.NoError(t, err)

	const requests = 20
	var wg sync.WaitGroup
	for range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Resume(ctx, res.Key, domain.Outcome("inc"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := engine.Inspect(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, requests, snap.Conversation["count"])
}

func TestEngine_FailedLaunchIsNotStored(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("broken")
	b.View("start").Entry(domain.ActionFunc(func(context.Context, domain.RequestContext) (*domain.Event, error) {
		return nil, errors.New("no session")
	}))
	flows, err := dsl.Registry(b)
	require.NoError(t, err)

	store := memory.NewStore()
	engine, err := webflow.New(flows, webflow.WithStore(store))
	require.NoError(t, err)

	_, err = engine.Launch(ctx, "broken", nil)
	require.Error(t, err)
	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = engine.Launch(ctx, "ghost", nil)
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestEngine_Restore(t *testing.T) {
	ctx := context.Background()
	engine, err := webflow.New(checkoutFlows(t), webflow.WithKeyGenerator(sequentialKeys()))
	require.NoError(t, err)
	res, err := engine.Launch(ctx, "checkout", nil)
	require.NoError(t, err)
	_, err = engine.Resume(ctx, res.Key, domain.Outcome("buy"))
	require.NoError(t, err)

	exec, err := engine.Restore(ctx, res.Key)
	require.NoError(t, err)
	assert.True(t, exec.Restored())
	assert.Equal(t, "payment", exec.ActiveSession().FlowID())
	assert.NotNil(t, exec.ActiveSession().Flow())

	err = engine.Delete(ctx, res.Key)
	require.NoError(t, err)
	_, err = engine.Restore(ctx, res.Key)
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
}

func TestEngine_RequiresLocator(t *testing.T) {
	_, err := webflow.New(nil)
	assert.Error(t, err)
}
