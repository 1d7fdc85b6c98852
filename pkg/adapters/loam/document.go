package loam

import "github.com/aretw0/webflow/pkg/domain"

// FlowDocument is the metadata of a flow file: YAML frontmatter of a
// Markdown file or the body of a JSON/YAML file. The Markdown body, when
// present, becomes the flow's "description" attribute.
//
// States, transitions, handlers and inline flows are kept raw here and
// decoded strictly when the flow is built, so typos are reported.
type FlowDocument struct {
	ID                string         `json:"id" mapstructure:"id"`
	Start             string         `json:"start" mapstructure:"start"`
	Variables         map[string]any `json:"variables" mapstructure:"variables"`
	StartActions      []string       `json:"start_actions" mapstructure:"start_actions"`
	EndActions        []string       `json:"end_actions" mapstructure:"end_actions"`
	States            []any          `json:"states" mapstructure:"states"`
	GlobalTransitions []any          `json:"global_transitions" mapstructure:"global_transitions"`
	ExceptionHandlers []any          `json:"exception_handlers" mapstructure:"exception_handlers"`
	Inline            []any          `json:"inline" mapstructure:"inline"`
	Attributes        map[string]any `json:"attributes" mapstructure:"attributes"`
}

// StateDocument describes one state. Type is one of view, action, decision,
// subflow or end; it defaults to view.
type StateDocument struct {
	ID                string               `mapstructure:"id"`
	Type              string               `mapstructure:"type"`
	View              string               `mapstructure:"view"`
	Flow              string               `mapstructure:"flow"`
	Entry             []string             `mapstructure:"entry"`
	Exit              []string             `mapstructure:"exit"`
	Actions           []string             `mapstructure:"actions"`
	Transitions       []TransitionDocument `mapstructure:"transitions"`
	ExceptionHandlers []HandlerDocument    `mapstructure:"exception_handlers"`
	Input             []domain.Mapping     `mapstructure:"input"`
	Output            []domain.Mapping     `mapstructure:"output"`
	Attributes        map[string]any       `mapstructure:"attributes"`
}

// TransitionDocument describes a transition.
//
// On is an event id, "*" (or empty) for the wildcard, or a "${...}" Lua
// expression. To is a state id or a "${...}" expression computing one;
// an empty To re-renders the current view.
type TransitionDocument struct {
	On      string   `mapstructure:"on"`
	To      string   `mapstructure:"to"`
	Actions []string `mapstructure:"actions"`
}

// HandlerDocument describes an exception handler. With no matcher set it
// handles every failure.
type HandlerDocument struct {
	To string `mapstructure:"to"`
	// Contains matches failures whose message contains the text.
	Contains string `mapstructure:"contains"`
	// Configuration matches configuration failures only.
	Configuration bool `mapstructure:"configuration"`
}
