package codec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/webflow/internal/codec"
	"github.com/aretw0/webflow/pkg/domain"
)

func TestSummary(t *testing.T) {
	updated := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)
	snap := &domain.Snapshot{
		Key:     "k",
		FlowID:  "booking",
		Status:  domain.ExecutionActive,
		StateID: "card",
		Sessions: []domain.SessionSnapshot{
			{FlowID: "booking", StateID: "pay", Status: domain.SessionActive},
			{FlowID: "payment", StateID: "card", Status: domain.SessionActive, Scope: map[string]any{"big": "blob"}},
		},
		UpdatedAt: updated,
	}

	for _, indent := range []bool{false, true} {
		data, err := codec.Encode(snap, indent)
		require.NoError(t, err)

		sum, err := codec.Summary("stored-key", data)
		require.NoError(t, err)
		assert.Equal(t, domain.ExecutionSummary{
			Key:       "stored-key",
			FlowID:    "booking",
			Status:    domain.ExecutionActive,
			StateID:   "card",
			Depth:     2,
			UpdatedAt: updated,
		}, sum)
	}
}

func TestSummary_Invalid(t *testing.T) {
	_, err := codec.Summary("k", []byte("{not json"))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	data, err := codec.Encode(&domain.Snapshot{Key: "k", FlowID: "F", Status: domain.ExecutionEnded}, false)
	require.NoError(t, err)

	snap, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "F", snap.FlowID)
	assert.Equal(t, domain.ExecutionEnded, snap.Status)

	_, err = codec.Decode([]byte("[]"))
	assert.Error(t, err)
}

func TestDecode_KeepsIntegers(t *testing.T) {
	data, err := codec.Encode(&domain.Snapshot{
		Key:          "k",
		FlowID:       "F",
		Sessions:     []domain.SessionSnapshot{{FlowID: "F", StateID: "s", Scope: map[string]any{"count": 3, "ratio": 0.5}}},
		Conversation: map[string]any{"items": []any{1, 2}, "nested": map[string]any{"n": 7}},
		Outcome:      &domain.Event{ID: "done", Attributes: map[string]any{"total": 30}},
	}, true)
	require.NoError(t, err)

	snap, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Sessions[0].Scope["count"])
	assert.Equal(t, 0.5, snap.Sessions[0].Scope["ratio"])
	assert.Equal(t, []any{1, 2}, snap.Conversation["items"])
	assert.Equal(t, map[string]any{"n": 7}, snap.Conversation["nested"])
	assert.Equal(t, 30, snap.Outcome.Attributes["total"])

	_, err = codec.Decode([]byte(`{"key": 1}`))
	assert.Error(t, err)
}
