package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/webflow/pkg/adapters/memory"
	"github.com/aretw0/webflow/pkg/domain"
)

func flow(t *testing.T, id string) *domain.Flow {
	t.Helper()
	f, err := domain.NewFlow(domain.FlowConfig{
		ID:     id,
		States: []*domain.State{{ID: "a", Kind: domain.StateView}},
	})
	require.NoError(t, err)
	return f
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	r := memory.NewRegistry(flow(t, "b"), flow(t, "a"))

	got, err := r.GetFlow(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID())

	_, err = r.GetFlow(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)

	assert.ErrorIs(t, r.Register(flow(t, "a")), domain.ErrInvalidDefinition)

	replacement := flow(t, "a")
	r.Replace(replacement)
	got, err = r.GetFlow(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, replacement, got)

	ids, err := r.ListFlows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() { memory.NewRegistry(flow(t, "a"), flow(t, "a")) })
}
