package loam_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/webflow/internal/runtime"
	loamAdapter "github.com/aretw0/webflow/pkg/adapters/loam"
	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/registry"
)

const bookingDoc = `---
id: booking
start: details
variables:
  attempts: 0
states:
  - id: details
    view: bookingForm
    transitions:
      - on: submit
        to: check
      - on: cancel
        to: cancelled
  - id: check
    type: decision
    transitions:
      - on: "${flow.total > 100}"
        to: approval
      - to: pay
  - id: approval
    transitions:
      - on: approve
        to: pay
  - id: pay
    type: subflow
    flow: payment
    input:
      - source: total
    output:
      - source: receipt
    transitions:
      - on: paid
        to: done
  - id: done
    type: end
    view: confirmation
    output:
      - source: receipt
  - id: cancelled
    type: end
    view: "redirect:/home"
exception_handlers:
  - contains: offline
    to: details
---
Books a hotel room.
`

const paymentDoc = `{
  "id": "payment",
  "states": [
    {"id": "charge", "type": "action", "actions": ["charge"], "transitions": [{"on": "success", "to": "paid"}]},
    {"id": "paid", "type": "end", "output": [{"source": "receipt"}]}
  ]
}`

func setupLocator(t *testing.T, files map[string]string, opts ...loamAdapter.Option) *loamAdapter.Locator {
	t.Helper()
	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	repo, err := loam.Init(dir, loam.WithVersioning(false))
	require.NoError(t, err)
	return loamAdapter.New(loam.NewTypedRepository[loamAdapter.FlowDocument](repo), opts...)
}

func chargeActions() *registry.Registry {
	r := registry.NewRegistry()
	r.RegisterFunc("charge", func(_ context.Context, rc domain.RequestContext) (*domain.Event, error) {
		rc.FlowScope().Put("receipt", "R-7")
		return domain.Success(), nil
	})
	return r
}

func TestLocator_RunsDocumentFlows(t *testing.T) {
	ctx := context.Background()
	locator := setupLocator(t, map[string]string{
		"booking.md":   bookingDoc,
		"payment.json": paymentDoc,
	}, loamAdapter.WithActions(chargeActions()))

	booking, err := locator.GetFlow(ctx, "booking")
	require.NoError(t, err)
	desc, ok := booking.Attribute(loamAdapter.DescriptionAttribute)
	require.True(t, ok)
	assert.Equal(t, "Books a hotel room.", desc)

	t.Run("small booking pays directly", func(t *testing.T) {
		exec := runtime.New(booking, runtime.WithLocator(locator))
		resp, err := exec.Start(ctx, map[string]any{"total": 50})
		require.NoError(t, err)
		assert.Equal(t, "bookingForm", resp.View)
		assert.EqualValues(t, 0, resp.Model["attempts"])

		resp, err = exec.SignalEvent(ctx, domain.Outcome("submit"))
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "confirmation", resp.View)
		assert.Equal(t, "R-7", exec.Outcome().Attributes["receipt"])
	})

	t.Run("large booking needs approval", func(t *testing.T) {
		exec := runtime.New(booking, runtime.WithLocator(locator))
		_, err := exec.Start(ctx, map[string]any{"total": 150})
		require.NoError(t, err)

		resp, err := exec.SignalEvent(ctx, domain.Outcome("submit"))
		require.NoError(t, err)
		assert.Equal(t, "approval", resp.StateID)
	})

	t.Run("cancel redirects", func(t *testing.T) {
		exec := runtime.New(booking, runtime.WithLocator(locator))
		_, err := exec.Start(ctx, nil)
		require.NoError(t, err)

		resp, err := exec.SignalEvent(ctx, domain.Outcome("cancel"))
		require.NoError(t, err)
		assert.Equal(t, domain.ResponseRedirect, resp.Kind)
		assert.Equal(t, "/home", resp.URL)
	})
}

func TestLocator_ListAndCache(t *testing.T) {
	ctx := context.Background()
	locator := setupLocator(t, map[string]string{
		"booking.md":   bookingDoc,
		"payment.json": paymentDoc,
	}, loamAdapter.WithActions(chargeActions()))

	ids, err := locator.ListFlows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"booking", "payment"}, ids)

	first, err := locator.GetFlow(ctx, "payment")
	require.NoError(t, err)
	again, err := locator.GetFlow(ctx, "payment")
	require.NoError(t, err)
	assert.Same(t, first, again)

	locator.Invalidate("payment.json")
	reloaded, err := locator.GetFlow(ctx, "payment")
	require.NoError(t, err)
	assert.NotSame(t, first, reloaded)
}

func TestLocator_MissingFlow(t *testing.T) {
	locator := setupLocator(t, map[string]string{"payment.json": paymentDoc})
	_, err := locator.GetFlow(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestLocator_InvalidDocuments(t *testing.T) {
	ctx := context.Background()
	locator := setupLocator(t, map[string]string{
		"payment.json":  paymentDoc,
		"typo.json":     `{"id": "typo", "states": [{"id": "a", "tpye": "view"}]}`,
		"dangling.json": `{"id": "dangling", "states": [{"id": "a", "transitions": [{"on": "go", "to": "nowhere"}]}]}`,
		"badexpr.json":  `{"id": "badexpr", "states": [{"id": "a", "transitions": [{"on": "${flow.x >}", "to": "a"}]}]}`,
	})

	_, err := locator.GetFlow(ctx, "payment")
	require.ErrorIs(t, err, domain.ErrInvalidDefinition)
	assert.ErrorIs(t, err, registry.ErrActionNotFound)

	_, err = locator.GetFlow(ctx, "typo")
	require.ErrorIs(t, err, domain.ErrInvalidDefinition)
	assert.Contains(t, err.Error(), "tpye")

	_, err = locator.GetFlow(ctx, "dangling")
	require.ErrorIs(t, err, domain.ErrInvalidDefinition)
	assert.Contains(t, err.Error(), "nowhere")

	_, err = locator.GetFlow(ctx, "badexpr")
	assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
}

func TestLocator_InlineFlowsAndHandlers(t *testing.T) {
	ctx := context.Background()
	actions := registry.NewRegistry()
	actions.RegisterFunc("reserve", func(context.Context, domain.RequestContext) (*domain.Event, error) {
		return nil, assertError("inventory offline")
	})
	locator := setupLocator(t, map[string]string{
		"shop.json": `{
  "id": "shop",
  "states": [
    {"id": "browse", "transitions": [{"on": "wizard", "to": "help"}, {"on": "buy", "to": "reserve"}]},
    {"id": "help", "type": "subflow", "flow": "tips", "transitions": [{"on": "done", "to": "browse"}]},
    {"id": "reserve", "type": "action", "actions": ["reserve"], "transitions": [{"to": "browse"}]},
    {"id": "sorry"}
  ],
  "exception_handlers": [{"contains": "offline", "to": "sorry"}],
  "inline": [
    {"id": "tips", "states": [{"id": "tip", "transitions": [{"on": "next", "to": "done"}]}, {"id": "done", "type": "end"}]}
  ]
}`,
	}, loamAdapter.WithActions(actions))

	shop, err := locator.GetFlow(ctx, "shop")
	require.NoError(t, err)
	_, ok := shop.InlineFlow("tips")
	assert.True(t, ok)

	exec := runtime.New(shop)
	_, err = exec.Start(ctx, nil)
	require.NoError(t, err)

	resp, err := exec.SignalEvent(ctx, domain.Outcome("wizard"))
	require.NoError(t, err)
	assert.Equal(t, "tips", resp.FlowID)

	resp, err = exec.SignalEvent(ctx, domain.Outcome("next"))
	require.NoError(t, err)
	assert.Equal(t, "browse", resp.StateID)

	resp, err = exec.SignalEvent(ctx, domain.Outcome("buy"))
	require.NoError(t, err)
	assert.Equal(t, "sorry", resp.StateID)
}

type assertError string

func (e assertError) Error() string { return string(e) }

const signupDoc = `---
id: signup
states:
  - id: form
    view: signupForm
    transitions:
      - on: submit
        to: check
  - id: check
    type: decision
    transitions:
      - on: "ref:isAdult"
        to: welcome
      - to: rejected
  - id: welcome
    type: end
  - id: rejected
    type: end
---
`

func TestLocator_ReferencedCriteria(t *testing.T) {
	ctx := context.Background()
	r := registry.NewRegistry()
	r.RegisterCriteria("isAdult", func(_ context.Context, rc domain.RequestContext) (bool, error) {
		age, _ := rc.FlowScope().Get("age")
		n, _ := age.(int)
		return n >= 18, nil
	})
	locator := setupLocator(t, map[string]string{"signup.md": signupDoc}, loamAdapter.WithActions(r))

	flow, err := locator.GetFlow(ctx, "signup")
	require.NoError(t, err)

	for age, outcome := range map[int]string{30: "welcome", 12: "rejected"} {
		exec := runtime.New(flow)
		_, err := exec.Start(ctx, map[string]any{"age": age})
		require.NoError(t, err)
		_, err = exec.SignalEvent(ctx, domain.Outcome("submit"))
		require.NoError(t, err)
		assert.Equal(t, outcome, exec.Outcome().ID)
	}

	unregistered := setupLocator(t, map[string]string{"signup.md": signupDoc})
	_, err = unregistered.GetFlow(ctx, "signup")
	assert.ErrorContains(t, err, "criteria not found")
}
