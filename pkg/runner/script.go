package runner

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/webflow"
	"github.com/aretw0/webflow/pkg/domain"
)

// Script is a recorded conversation:
//
//	flow: booking
//	input:
//	  total: 90
//	events:
//	  - submit
//	  - event: pay
//	    attributes:
//	      card: "4242"
type Script struct {
	Flow   string         `yaml:"flow"`
	Input  map[string]any `yaml:"input"`
	Events []ScriptEvent  `yaml:"events"`
}

// ScriptEvent is one scripted event. A plain string is shorthand for an id.
type ScriptEvent struct {
	Event      string         `yaml:"event"`
	Attributes map[string]any `yaml:"attributes"`
}

func (e *ScriptEvent) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		e.Event = n.Value
		return nil
	}
	type plain ScriptEvent
	return n.Decode((*plain)(e))
}

// LoadScript decodes a YAML script.
func LoadScript(r io.Reader) (*Script, error) {
	var s Script
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode script: %w", err)
	}
	for i, ev := range s.Events {
		if ev.Event == "" {
			return nil, fmt.Errorf("script event %d has no id", i)
		}
	}
	return &s, nil
}

// ScriptHandler replays the events of a Script and writes results as text.
type ScriptHandler struct {
	Writer io.Writer
	events []ScriptEvent
	next   int
}

// NewScriptHandler creates a handler replaying s.
func NewScriptHandler(s *Script, w io.Writer) *ScriptHandler {
	return &ScriptHandler{Writer: w, events: s.Events}
}

func (h *ScriptHandler) Output(_ context.Context, res *webflow.Result) error {
	return writeResult(h.Writer, res)
}

func (h *ScriptHandler) Input(ctx context.Context) (*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.next >= len(h.events) {
		return nil, io.EOF
	}
	ev := h.events[h.next]
	h.next++
	fmt.Fprintf(h.Writer, "> %s\n", ev.Event)
	return domain.NewEvent(EventSource, ev.Event, ev.Attributes), nil
}

func (h *ScriptHandler) SystemOutput(_ context.Context, msg string) error {
	_, err := fmt.Fprintln(h.Writer, msg)
	return err
}

// Remaining reports how many scripted events were not consumed.
func (h *ScriptHandler) Remaining() int { return len(h.events) - h.next }
