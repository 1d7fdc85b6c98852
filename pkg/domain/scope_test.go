package domain_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/webflow/pkg/domain"
)

func TestScope(t *testing.T) {
	s := domain.NewScope()
	_, existed := s.Put("name", "ada")
	assert.False(t, existed)

	prev, existed := s.Put("name", "grace")
	assert.True(t, existed)
	assert.Equal(t, "ada", prev)

	name, ok := s.GetString("name")
	assert.True(t, ok)
	assert.Equal(t, "grace", name)

	s.PutAll(map[string]any{"age": 36})
	_, ok = s.GetString("age")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())

	copied := s.AsMap()
	copied["extra"] = true
	assert.False(t, s.Contains("extra"))

	s.Seal()
	assert.True(t, s.Sealed())
	assert.PanicsWithValue(t, domain.ErrScopeSealed, func() { s.Put("x", 1) })
	assert.PanicsWithValue(t, domain.ErrScopeSealed, func() { s.Clear() })

	v, ok := s.Get("age")
	assert.True(t, ok)
	assert.Equal(t, 36, v)
}

func TestScope_JSON(t *testing.T) {
	s := domain.ScopeFrom(map[string]any{"n": "v"})
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":"v"}`, string(data))

	var back domain.Scope
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "v", back.AsMap()["n"])

	var numbers domain.Scope
	require.NoError(t, json.Unmarshal([]byte(`{"count":3,"price":9.5,"huge":1e300}`), &numbers))
	assert.Equal(t, map[string]any{"count": 3, "price": 9.5, "huge": 1e300}, numbers.AsMap())
}

func TestMergeScopes(t *testing.T) {
	request := domain.ScopeFrom(map[string]any{"a": "request"})
	flow := domain.ScopeFrom(map[string]any{"a": "flow", "b": "flow"})
	conversation := domain.ScopeFrom(map[string]any{"b": "conversation", "c": "conversation"})

	model := domain.MergeScopes(request, nil, flow, conversation)
	assert.Equal(t, map[string]any{"a": "request", "b": "flow", "c": "conversation"}, model)
}

func TestApplyMappings(t *testing.T) {
	src := map[string]any{"user": "ada", "id": 7}
	lookup := func(k string) (any, bool) {
		v, ok := src[k]
		return v, ok
	}

	dst := map[string]any{}
	err := domain.ApplyMappings([]domain.Mapping{
		{Source: "user", Target: "name"},
		{Source: "id"},
		{Source: "optional"},
	}, lookup, dst)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "ada", "id": 7}, dst)

	err = domain.ApplyMappings([]domain.Mapping{{Source: "token", Required: true}}, lookup, dst)
	assert.ErrorContains(t, err, "required attribute 'token' is missing")
}

type quotaError struct{ limit int }

func (e *quotaError) Error() string { return fmt.Sprintf("quota %d exceeded", e.limit) }

var errDeclined = errors.New("card declined")

func TestFindHandler(t *testing.T) {
	handlers := []*domain.ExceptionHandler{
		domain.HandleIs(errDeclined, "payment"),
		domain.HandleAs[*quotaError]("quota"),
		domain.HandleAny("fallback"),
	}

	wrapped := &domain.FlowExecutionError{FlowID: "f", StateID: "s", Err: fmt.Errorf("charge: %w", errDeclined)}
	assert.Equal(t, "payment", domain.FindHandler(handlers, wrapped).TargetState)
	assert.Equal(t, "quota", domain.FindHandler(handlers, fmt.Errorf("x: %w", &quotaError{limit: 3})).TargetState)
	assert.Equal(t, "fallback", domain.FindHandler(handlers, errors.New("other")).TargetState)

	assert.Nil(t, domain.FindHandler(handlers[:2], errors.New("other")))
	assert.Equal(t, "*", handlers[2].Name)
	assert.Equal(t, "*domain_test.quotaError", handlers[1].Name)
}

func TestErrors(t *testing.T) {
	root := errors.New("disk full")
	err := &domain.FlowExecutionError{FlowID: "f", StateID: "save", Err: fmt.Errorf("write: %w", root)}
	assert.Equal(t, "state 'save' of flow 'f': write: disk full", err.Error())
	assert.Same(t, root, domain.RootCause(err))
	assert.Same(t, root, domain.RootCause(errors.Join(root, errors.New("second"))))
	assert.Nil(t, domain.RootCause(nil))

	noMatch := &domain.NoMatchingTransitionError{FlowID: "f", StateID: "s", EventIDs: []string{"go"}, Criteria: []string{"back"}}
	assert.True(t, domain.IsConfigurationFailure(fmt.Errorf("x: %w", noMatch)))
	assert.True(t, domain.IsConfigurationFailure(domain.ErrNoActions))
	assert.False(t, domain.IsConfigurationFailure(root))
}

func TestSnapshot_Summary(t *testing.T) {
	snap := &domain.Snapshot{
		Key:     "k1",
		FlowID:  "main",
		Status:  domain.ExecutionActive,
		StateID: "ask",
		Sessions: []domain.SessionSnapshot{
			{FlowID: "main", StateID: "sub"},
			{FlowID: "child", StateID: "ask", Scope: map[string]any{"n": "v"}},
		},
	}

	active, ok := snap.Active()
	require.True(t, ok)
	assert.Equal(t, "child", active.FlowID)

	sum := snap.Summary()
	assert.Equal(t, 2, sum.Depth)
	assert.Equal(t, "ask", sum.StateID)

	clone, err := snap.Clone()
	require.NoError(t, err)
	clone.Sessions[1].Scope["n"] = "changed"
	snap.Conversation = map[string]any{"count": 3}
	clone, err = snap.Clone()
	require.NoError(t, err)
	assert.Equal(t, 3, clone.Conversation["count"])
	assert.Equal(t, "v", snap.Sessions[1].Scope["n"])

	_, ok = (&domain.Snapshot{}).Active()
	assert.False(t, ok)
}
