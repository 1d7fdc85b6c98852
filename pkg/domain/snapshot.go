package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionStatus summarizes where an execution is in its life.
type ExecutionStatus string

const (
	ExecutionCreated ExecutionStatus = "created"
	ExecutionActive  ExecutionStatus = "active"
	ExecutionEnded   ExecutionStatus = "ended"
)

// SessionSnapshot is the persisted form of one session. Definition objects are
// referenced by id only and are re-resolved when the execution is restored.
type SessionSnapshot struct {
	FlowID  string         `json:"flow_id"`
	StateID string         `json:"state_id"`
	Status  SessionStatus  `json:"status"`
	Scope   map[string]any `json:"scope,omitempty"`
}

// Snapshot is the persisted form of an execution between requests.
// Sessions are ordered bottom (root) to top (active).
type Snapshot struct {
	Key    string          `json:"key"`
	FlowID string          `json:"flow_id"`
	Status ExecutionStatus `json:"status"`
	// StateID duplicates the active session's state for cheap inspection.
	StateID      string            `json:"state_id,omitempty"`
	Sessions     []SessionSnapshot `json:"sessions"`
	Conversation map[string]any    `json:"conversation,omitempty"`
	Flash        map[string]any    `json:"flash,omitempty"`
	Outcome      *Event            `json:"outcome,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Active returns the top session snapshot.
func (s *Snapshot) Active() (SessionSnapshot, bool) {
	if len(s.Sessions) == 0 {
		return SessionSnapshot{}, false
	}
	return s.Sessions[len(s.Sessions)-1], true
}

// UnmarshalJSON decodes integral attribute values as int so that scopes read
// the same after a store round trip.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type plain Snapshot
	var out plain
	if err := decodeNumbers(data, &out); err != nil {
		return err
	}
	*s = Snapshot(out)
	NormalizeNumbers(s.Conversation)
	NormalizeNumbers(s.Flash)
	for _, ss := range s.Sessions {
		NormalizeNumbers(ss.Scope)
	}
	if s.Outcome != nil {
		NormalizeNumbers(s.Outcome.Attributes)
	}
	return nil
}

// Clone returns a deep copy by way of the JSON form, the same copy a store would hand back.
func (s *Snapshot) Clone() (*Snapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &out, nil
}

// ExecutionSummary is the listing view of a stored execution.
type ExecutionSummary struct {
	Key       string          `json:"key"`
	FlowID    string          `json:"flow_id"`
	Status    ExecutionStatus `json:"status"`
	StateID   string          `json:"state_id,omitempty"`
	Depth     int             `json:"depth"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Summary projects the snapshot onto its summary.
func (s *Snapshot) Summary() ExecutionSummary {
	return ExecutionSummary{
		Key:       s.Key,
		FlowID:    s.FlowID,
		Status:    s.Status,
		StateID:   s.StateID,
		Depth:     len(s.Sessions),
		UpdatedAt: s.UpdatedAt,
	}
}
