package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/webflow/pkg/adapters/memory"
	"github.com/aretw0/webflow/pkg/domain"
)

// Builder assembles a flow definition.
type Builder struct {
	cfg    domain.FlowConfig
	states map[string]*StateBuilder
	global *StateBuilder
}

// New creates a builder for the flow id.
func New(id string) *Builder {
	b := &Builder{
		cfg:    domain.FlowConfig{ID: id},
		states: make(map[string]*StateBuilder),
	}
	b.global = &StateBuilder{state: &domain.State{ID: "<global>"}, builder: b}
	return b
}

// add creates a state, or returns the existing builder when id is taken by
// a state of the same kind.
func (b *Builder) add(id string, kind domain.StateKind) *StateBuilder {
	if sb, ok := b.states[id]; ok && sb.state.Kind == kind {
		return sb
	}
	sb := &StateBuilder{
		state:   &domain.State{ID: id, Kind: kind},
		builder: b,
	}
	if _, dup := b.states[id]; !dup {
		b.states[id] = sb
	}
	// Duplicates still land in the config so NewFlow reports them.
	b.cfg.States = append(b.cfg.States, sb.state)
	return sb
}

// View adds a view state rendering a view named after the state.
func (b *Builder) View(id string) *StateBuilder { return b.add(id, domain.StateView) }

// Action adds an action state running actions as a chain.
func (b *Builder) Action(id string, actions ...domain.Action) *StateBuilder {
	sb := b.add(id, domain.StateAction)
	sb.state.Actions = append(sb.state.Actions, actions...)
	return sb
}

// Decision adds a decision state.
func (b *Builder) Decision(id string) *StateBuilder { return b.add(id, domain.StateDecision) }

// Subflow adds a state that starts the flow flowID.
func (b *Builder) Subflow(id, flowID string) *StateBuilder {
	sb := b.add(id, domain.StateSubflow)
	sb.state.Subflow = &domain.SubflowSpec{FlowID: flowID}
	return sb
}

// End adds an end state.
func (b *Builder) End(id string) *StateBuilder { return b.add(id, domain.StateEnd) }

// Start sets the start state. Defaults to the first state added.
func (b *Builder) Start(id string) *Builder {
	b.cfg.StartState = id
	return b
}

// Global returns a builder whose transitions and handlers apply to every
// state of the flow.
func (b *Builder) Global() *StateBuilder { return b.global }

// Var declares a flow variable created when a session starts.
func (b *Builder) Var(name string, init func() any) *Builder {
	b.cfg.Variables = append(b.cfg.Variables, domain.Variable{Name: name, Init: init})
	return b
}

// OnStart adds actions run when a session of the flow starts.
func (b *Builder) OnStart(actions ...domain.Action) *Builder {
	b.cfg.StartActions = append(b.cfg.StartActions, actions...)
	return b
}

// OnEnd adds actions run when a session of the flow ends normally.
func (b *Builder) OnEnd(actions ...domain.Action) *Builder {
	b.cfg.EndActions = append(b.cfg.EndActions, actions...)
	return b
}

// Inline embeds flows resolvable only from this flow and its subflows.
func (b *Builder) Inline(flows ...*domain.Flow) *Builder {
	b.cfg.InlineFlows = append(b.cfg.InlineFlows, flows...)
	return b
}

// Attr sets a flow attribute.
func (b *Builder) Attr(key string, value any) *Builder {
	if b.cfg.Attributes == nil {
		b.cfg.Attributes = make(map[string]any)
	}
	b.cfg.Attributes[key] = value
	return b
}

// Build validates and returns the flow.
func (b *Builder) Build() (*domain.Flow, error) {
	cfg := b.cfg
	cfg.GlobalTransitions = b.global.state.Transitions
	cfg.ExceptionHandlers = b.global.state.ExceptionHandlers
	return domain.NewFlow(cfg)
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *domain.Flow {
	f, err := b.Build()
	if err != nil {
		panic(err)
	}
	return f
}

// Registry builds every flow into an in-memory locator.
func Registry(builders ...*Builder) (*memory.Registry, error) {
	r := memory.NewRegistry()
	var errs []error
	for _, b := range builders {
		f, err := b.Build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.Register(f); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to build flows: %w", errors.Join(errs...))
	}
	return r, nil
}
