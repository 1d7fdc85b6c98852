package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/webflow/pkg/domain"
)

// RunExecutionStoreContract runs a suite of tests to verify that an ExecutionStore
// implementation adheres to the defined interface contract.
func RunExecutionStoreContract(t *testing.T, store ExecutionStore) {
	ctx := context.Background()
	key := "contract-test-" + time.Now().Format("20060102150405.000000000")

	newSnapshot := func(key, stateID string) *domain.Snapshot {
		return &domain.Snapshot{
			Key:     key,
			FlowID:  "booking",
			Status:  domain.ExecutionActive,
			StateID: stateID,
			Sessions: []domain.SessionSnapshot{
				{FlowID: "booking", StateID: "payment", Status: domain.SessionActive, Scope: map[string]any{"hotel": "ritz"}},
				{FlowID: "payment", StateID: stateID, Status: domain.SessionActive, Scope: map[string]any{"count": 42}},
			},
			Conversation: map[string]any{"user": "ana"},
			UpdatedAt:    time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnapshot(key, "card")

		err := store.Save(ctx, key, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "booking", loaded.FlowID)
		assert.Equal(t, domain.ExecutionActive, loaded.Status)
		assert.Equal(t, "card", loaded.StateID)
		require.Len(t, loaded.Sessions, 2)
		assert.Equal(t, "payment", loaded.Sessions[1].FlowID)
		assert.Equal(t, domain.SessionActive, loaded.Sessions[1].Status)
		assert.Equal(t, "ritz", loaded.Sessions[0].Scope["hotel"])
		assert.Equal(t, 42, loaded.Sessions[1].Scope["count"], "integers keep their type")
		assert.Equal(t, "ana", loaded.Conversation["user"])
		assert.True(t, snap.UpdatedAt.Equal(loaded.UpdatedAt))
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, newSnapshot(key, "confirm")))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "confirm", loaded.StateID)
	})

	t.Run("Loaded Snapshot Is Detached", func(t *testing.T) {
		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		loaded.Conversation["user"] = "mutated"

		again, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "ana", again.Conversation["user"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, newSnapshot(key, "card")))

		err := store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrExecutionNotFound, "Load after Delete should return ErrExecutionNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1 := key + "-1"
		id2 := key + "-2"
		require.NoError(t, store.Save(ctx, id1, newSnapshot(id1, "card")))
		require.NoError(t, store.Save(ctx, id2, newSnapshot(id2, "card")))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, id1)
		assert.Contains(t, keys, id2)
	})

	if lister, ok := store.(SummaryLister); ok {
		t.Run("Summaries", func(t *testing.T) {
			id := key + "-summary"
			require.NoError(t, store.Save(ctx, id, newSnapshot(id, "card")))
			defer func() { _ = store.Delete(ctx, id) }()

			summaries, err := lister.Summaries(ctx)
			require.NoError(t, err)

			var found *domain.ExecutionSummary
			for i := range summaries {
				if summaries[i].Key == id {
					found = &summaries[i]
				}
			}
			require.NotNil(t, found, "summary for %s should be listed", id)
			assert.Equal(t, "booking", found.FlowID)
			assert.Equal(t, domain.ExecutionActive, found.Status)
			assert.Equal(t, "card", found.StateID)
			assert.Equal(t, 2, found.Depth)
		})
	}
}
