// Package codec holds the JSON form of persisted executions shared by the
// file and redis stores.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/aretw0/webflow/pkg/domain"
)

// Encode marshals a snapshot. indent selects the human-readable form used on disk.
func Encode(snap *domain.Snapshot, indent bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(snap, "", "  ")
	} else {
		data, err = json.Marshal(snap)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode unmarshals a snapshot. Integral attribute values come back as int.
func Decode(data []byte) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Summary reads the listing fields of an encoded snapshot without decoding
// the scopes.
func Summary(key string, data []byte) (domain.ExecutionSummary, error) {
	if !gjson.ValidBytes(data) {
		return domain.ExecutionSummary{}, fmt.Errorf("snapshot '%s' is not valid JSON", key)
	}
	fields := gjson.GetManyBytes(data, "flow_id", "status", "state_id", "sessions.#", "updated_at")

	sum := domain.ExecutionSummary{
		Key:     key,
		FlowID:  fields[0].String(),
		Status:  domain.ExecutionStatus(fields[1].String()),
		StateID: fields[2].String(),
		Depth:   int(fields[3].Int()),
	}
	if ts := fields[4].String(); ts != "" {
		updated, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return domain.ExecutionSummary{}, fmt.Errorf("snapshot '%s' has a bad timestamp: %w", key, err)
		}
		sum.UpdatedAt = updated
	}
	return sum, nil
}
