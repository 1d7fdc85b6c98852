package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/webflow/pkg/domain"
)

// Pseudo nodes for global transitions and targets computed at runtime.
const (
	globalNode  = "__global__"
	dynamicNode = "__dynamic__"
)

// Overlay marks runtime progress on the graph.
type Overlay struct {
	VisitedStates []string
	CurrentState  string
}

// GenerateMermaid produces a Mermaid flowchart for a flow.
// Shapes follow the state kind:
//   - start: ((circle)) around the label of the start state
//   - view: [/parallelogram/]
//   - action: [rectangle]
//   - decision: {rhombus}
//   - subflow: [[subroutine]]
//   - end: (((double circle)))
//
// Refresh transitions loop back on their state, exception handlers and
// global transitions are drawn dotted. Dynamic targets end in a "?" node.
func GenerateMermaid(flow *domain.Flow, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	start := flow.StartState().ID
	dynamic := false

	for _, s := range flow.States() {
		id := sanitizeMermaidID(s.ID)
		opener, closer := shape(s)
		if s.ID == start && s.Kind != domain.StateEnd {
			opener, closer = "((", "))"
		}

		label := s.ID
		switch {
		case s.Kind == domain.StateSubflow && s.Subflow != nil:
			label = s.ID + " <br/> ↳ " + s.Subflow.FlowID
		case s.View != "":
			label = s.ID + " <br/> " + s.View
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, escape(label), closer)

		for _, t := range s.Transitions {
			if writeTransition(&sb, id, t) {
				dynamic = true
			}
		}
		for _, h := range s.ExceptionHandlers {
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", id, escape("! "+h.Name), sanitizeMermaidID(h.TargetState))
		}
	}

	if globals := flow.GlobalTransitions(); len(globals) > 0 || len(flow.ExceptionHandlers()) > 0 {
		fmt.Fprintf(&sb, "    %s{{\"global\"}}\n", globalNode)
		for _, t := range globals {
			target, ok := t.StaticTargetID()
			switch {
			case t.To == nil:
				continue
			case !ok:
				dynamic = true
				target = dynamicNode
			}
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", globalNode, escape(t.Criteria().String()), sanitizeMermaidID(target))
		}
		for _, h := range flow.ExceptionHandlers() {
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", globalNode, escape("! "+h.Name), sanitizeMermaidID(h.TargetState))
		}
	}
	if dynamic {
		fmt.Fprintf(&sb, "    %s((\"?\"))\n", dynamicNode)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedStates {
			safe := sanitizeMermaidID(id)
			if safe != "" && !seen[safe] && flow.HasState(id) {
				seen[safe] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safe)
			}
		}
		if overlay.CurrentState != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentState))
		}
	}

	return sb.String()
}

// writeTransition reports whether the transition has a dynamic target.
func writeTransition(sb *strings.Builder, from string, t *domain.Transition) bool {
	criteria := t.Criteria().String()
	target, static := t.StaticTargetID()

	if t.To == nil {
		fmt.Fprintf(sb, "    %s -. \"%s\" .-> %s\n", from, escape("⟳ "+criteria), from)
		return false
	}
	to := sanitizeMermaidID(target)
	if !static {
		to = dynamicNode
	}
	if criteria == domain.WildcardEventID {
		fmt.Fprintf(sb, "    %s --> %s\n", from, to)
	} else {
		fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", from, escape(criteria), to)
	}
	return !static
}

func shape(s *domain.State) (string, string) {
	switch s.Kind {
	case domain.StateView:
		return "[/", "/]"
	case domain.StateDecision:
		return "{", "}"
	case domain.StateSubflow:
		return "[[", "]]"
	case domain.StateEnd:
		return "(((", ")))"
	default:
		return "[", "]"
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
