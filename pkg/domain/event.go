package domain

import "maps"

// Standard outcome ids used by actions that only report success or failure.
const (
	EventSuccess = "success"
	EventError   = "error"
	EventYes     = "yes"
	EventNo      = "no"
)

// Event is an outcome signal: produced by an action or supplied by the driver,
// it selects a transition. Events are values and are not mutated after creation.
type Event struct {
	ID         string         `json:"id"`
	Source     string         `json:"source,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// NewEvent creates an event, copying attrs so later changes by the caller are not visible.
func NewEvent(source, id string, attrs map[string]any) *Event {
	var copied map[string]any
	if len(attrs) > 0 {
		copied = maps.Clone(attrs)
	}
	return &Event{ID: id, Source: source, Attributes: copied}
}

// Outcome is shorthand for an event with only an id.
func Outcome(id string) *Event {
	return &Event{ID: id}
}

// Success returns the standard "success" outcome.
func Success() *Event { return Outcome(EventSuccess) }

// Failure returns the standard "error" outcome.
func Failure() *Event { return Outcome(EventError) }

// Attr returns a single event attribute.
func (e *Event) Attr(key string) (any, bool) {
	if e == nil || e.Attributes == nil {
		return nil, false
	}
	v, ok := e.Attributes[key]
	return v, ok
}
