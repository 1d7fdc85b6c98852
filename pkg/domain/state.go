package domain

import "fmt"

// StateKind tags the State variant.
type StateKind string

const (
	// StateAction runs its actions as a chain until one outcome matches a transition.
	StateAction StateKind = "action"
	// StateView pauses the execution and waits for an external event.
	StateView StateKind = "view"
	// StateSubflow starts a nested flow and resumes on its outcome.
	StateSubflow StateKind = "subflow"
	// StateDecision picks a transition immediately on entry.
	StateDecision StateKind = "decision"
	// StateEnd ends the owning session.
	StateEnd StateKind = "end"
)

// Mapping copies one attribute between two maps.
// An empty Target means the value keeps its Source name.
type Mapping struct {
	Source   string `json:"source" yaml:"source" mapstructure:"source"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
}

// TargetKey returns the name the mapped value is stored under.
func (m Mapping) TargetKey() string {
	if m.Target == "" {
		return m.Source
	}
	return m.Target
}

// ApplyMappings copies every mapping from lookup into dst.
// A required mapping whose source is absent fails.
func ApplyMappings(mappings []Mapping, lookup func(string) (any, bool), dst map[string]any) error {
	for _, m := range mappings {
		v, ok := lookup(m.Source)
		if !ok {
			if m.Required {
				return fmt.Errorf("required attribute '%s' is missing", m.Source)
			}
			continue
		}
		dst[m.TargetKey()] = v
	}
	return nil
}

// SubflowSpec describes the flow a subflow state starts.
type SubflowSpec struct {
	FlowID string
	// Input is evaluated against the parent request context and seeds the child's flow scope.
	Input []Mapping
	// Output copies values from the child's output map into the parent's flow scope.
	Output []Mapping
}

// State is a node of a flow. Kind selects which variant fields apply:
// Actions for action states, View for view and end states, Subflow for subflow states,
// Output for end states. Transitions are ignored on end states.
type State struct {
	ID   string
	Kind StateKind

	EntryActions []Action
	ExitActions  []Action
	// Actions is the chain executed by an action state.
	Actions []Action

	Transitions       []*Transition
	ExceptionHandlers []*ExceptionHandler

	// View names what a view state renders, or the final response of an end state.
	// A "redirect:" prefix asks the driver for an external redirect.
	View string

	Subflow *SubflowSpec

	// Output selects the values of the ending session's scopes returned to the caller.
	Output []Mapping

	Attributes map[string]any
}

// CanPause reports whether the state can receive signaled events.
func (s *State) CanPause() bool {
	return s.Kind == StateView
}

// IsEnd reports whether entering the state ends its session.
func (s *State) IsEnd() bool {
	return s.Kind == StateEnd
}

func (s *State) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.ID)
}
