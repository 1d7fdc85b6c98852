package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/ports"
)

// ErrInvalidGraph is wrapped by Report.Err when any error issue was found.
var ErrInvalidGraph = errors.New("invalid flow graph")

// Severity grades an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding about a flow.
type Issue struct {
	Severity Severity
	FlowID   string
	StateID  string
	Message  string
}

func (i Issue) String() string {
	if i.StateID == "" {
		return fmt.Sprintf("%s: flow '%s': %s", i.Severity, i.FlowID, i.Message)
	}
	return fmt.Sprintf("%s: flow '%s' state '%s': %s", i.Severity, i.FlowID, i.StateID, i.Message)
}

// Report collects the issues of every flow visited.
type Report struct {
	Flows  []string
	Issues []Issue
}

// Errors returns the error issues.
func (r *Report) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Err returns nil when no error issue was found.
func (r *Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, len(errs))
	for i, issue := range errs {
		lines[i] = issue.String()
	}
	return fmt.Errorf("%w: found %d errors:\n- %s", ErrInvalidGraph, len(errs), strings.Join(lines, "\n- "))
}

func (r *Report) add(sev Severity, flowID, stateID, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Severity: sev,
		FlowID:   flowID,
		StateID:  stateID,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Validate loads every flow in ids, or every flow the locator lists when ids
// is empty, and checks it together with the subflows it reaches:
// flows that fail to load, subflow states whose flow cannot be resolved,
// states unreachable from the start state and view states with no way out.
// Structural problems such as dangling targets surface as load failures.
func Validate(ctx context.Context, locator ports.FlowDefinitionLocator, ids ...string) (*Report, error) {
	if len(ids) == 0 {
		lister, ok := locator.(ports.FlowLister)
		if !ok {
			return nil, errors.New("locator cannot list flows; pass flow ids")
		}
		listed, err := lister.ListFlows(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list flows: %w", err)
		}
		ids = listed
	}

	v := &walker{
		locator: locator,
		report:  &Report{},
		visited: make(map[*domain.Flow]bool),
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		flow, err := locator.GetFlow(ctx, id)
		if err != nil {
			v.report.add(SeverityError, id, "", "%v", err)
			continue
		}
		v.walk(ctx, flow, nil)
	}
	return v.report, nil
}

type walker struct {
	locator ports.FlowDefinitionLocator
	report  *Report
	visited map[*domain.Flow]bool
}

// walk checks flow; parents are the enclosing flows whose inline flows are in scope.
func (w *walker) walk(ctx context.Context, flow *domain.Flow, parents []*domain.Flow) {
	if w.visited[flow] {
		return
	}
	w.visited[flow] = true
	w.report.Flows = append(w.report.Flows, flow.ID())

	w.checkReachability(flow)

	chain := append(append([]*domain.Flow(nil), parents...), flow)
	for _, s := range flow.States() {
		switch s.Kind {
		case domain.StateView:
			if len(s.Transitions) == 0 && len(flow.GlobalTransitions()) == 0 {
				w.report.add(SeverityWarning, flow.ID(), s.ID, "view state has no transitions")
			}
		case domain.StateSubflow:
			sub, err := w.resolve(ctx, s.Subflow.FlowID, chain)
			if err != nil {
				w.report.add(SeverityError, flow.ID(), s.ID, "subflow '%s': %v", s.Subflow.FlowID, err)
				continue
			}
			w.walk(ctx, sub, chain)
		}
	}
}

func (w *walker) resolve(ctx context.Context, id string, chain []*domain.Flow) (*domain.Flow, error) {
	for i := len(chain) - 1; i >= 0; i-- {
		if in, ok := chain[i].InlineFlow(id); ok {
			return in, nil
		}
	}
	return w.locator.GetFlow(ctx, id)
}

// checkReachability walks static targets from the start state. Global
// transitions and flow handlers can fire from anywhere, so their targets are
// roots too. A dynamic target may reach any state, which disables the check.
func (w *walker) checkReachability(flow *domain.Flow) {
	dynamic := false
	hasDynamic := func(ts []*domain.Transition) {
		for _, t := range ts {
			if _, ok := t.StaticTargetID(); !ok && t.To != nil {
				dynamic = true
			}
		}
	}
	hasDynamic(flow.GlobalTransitions())
	for _, s := range flow.States() {
		hasDynamic(s.Transitions)
	}
	if dynamic {
		return
	}

	reached := make(map[string]bool)
	queue := []string{flow.StartState().ID}
	for _, t := range flow.GlobalTransitions() {
		if id, _ := t.StaticTargetID(); id != "" {
			queue = append(queue, id)
		}
	}
	for _, h := range flow.ExceptionHandlers() {
		queue = append(queue, h.TargetState)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if reached[id] {
			continue
		}
		reached[id] = true

		s, err := flow.State(id)
		if err != nil {
			continue
		}
		for _, t := range s.Transitions {
			if next, _ := t.StaticTargetID(); next != "" && !reached[next] {
				queue = append(queue, next)
			}
		}
		for _, h := range s.ExceptionHandlers {
			if !reached[h.TargetState] {
				queue = append(queue, h.TargetState)
			}
		}
	}

	for _, s := range flow.States() {
		if !reached[s.ID] {
			w.report.add(SeverityError, flow.ID(), s.ID, "state is unreachable from start state '%s'", flow.StartState().ID)
		}
	}
}
