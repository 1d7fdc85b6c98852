package domain

import (
	"errors"
	"fmt"
	"slices"
)

// Variable is a flow scope attribute created when a session starts.
type Variable struct {
	Name string
	Init func() any
}

// FlowConfig is the mutable description a Flow is built from.
type FlowConfig struct {
	ID string
	// StartState defaults to the first state.
	StartState string
	States     []*State

	// GlobalTransitions are tried when the current state has no matching transition.
	GlobalTransitions []*Transition
	ExceptionHandlers []*ExceptionHandler

	StartActions []Action
	EndActions   []Action
	Variables    []Variable

	// InlineFlows are subflows private to this flow, resolved before the locator.
	InlineFlows []*Flow

	Attributes map[string]any
}

// Flow is an immutable, validated process graph.
// It is safe for concurrent use by any number of executions.
type Flow struct {
	id                string
	startState        *State
	states            []*State
	index             map[string]*State
	globalTransitions []*Transition
	handlers          []*ExceptionHandler
	startActions      []Action
	endActions        []Action
	variables         []Variable
	inline            map[string]*Flow
	attributes        map[string]any
}

// NewFlow validates cfg and builds a Flow. All structural problems are joined
// into a single error wrapping ErrInvalidDefinition.
func NewFlow(cfg FlowConfig) (*Flow, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: flow id is required", ErrInvalidDefinition)
	}
	if len(cfg.States) == 0 {
		return nil, fmt.Errorf("%w: flow '%s' has no states", ErrInvalidDefinition, cfg.ID)
	}

	f := &Flow{
		id:                cfg.ID,
		index:             make(map[string]*State, len(cfg.States)),
		globalTransitions: slices.Clone(cfg.GlobalTransitions),
		handlers:          slices.Clone(cfg.ExceptionHandlers),
		startActions:      slices.Clone(cfg.StartActions),
		endActions:        slices.Clone(cfg.EndActions),
		variables:         slices.Clone(cfg.Variables),
		inline:            make(map[string]*Flow, len(cfg.InlineFlows)),
		attributes:        cfg.Attributes,
	}

	var errs []error
	for _, s := range cfg.States {
		if s == nil || s.ID == "" {
			errs = append(errs, errors.New("state id is required"))
			continue
		}
		if _, dup := f.index[s.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate state '%s'", s.ID))
			continue
		}
		clone := *s
		f.states = append(f.states, &clone)
		f.index[s.ID] = &clone
	}
	for _, in := range cfg.InlineFlows {
		if in == nil {
			continue
		}
		if _, dup := f.inline[in.ID()]; dup {
			errs = append(errs, fmt.Errorf("duplicate inline flow '%s'", in.ID()))
			continue
		}
		f.inline[in.ID()] = in
	}

	start := cfg.StartState
	if start == "" && len(f.states) > 0 {
		start = f.states[0].ID
	}
	f.startState = f.index[start]
	if f.startState == nil {
		errs = append(errs, fmt.Errorf("start state '%s' does not exist", start))
	}

	checkTarget := func(owner string, t *Transition) {
		if id, ok := t.StaticTargetID(); ok && id != "" {
			if _, exists := f.index[id]; !exists {
				errs = append(errs, fmt.Errorf("%s: transition %s targets unknown state '%s'", owner, t.Criteria(), id))
			}
		}
	}
	checkHandlers := func(owner string, hs []*ExceptionHandler) {
		for _, h := range hs {
			if h == nil || h.Matches == nil {
				errs = append(errs, fmt.Errorf("%s: exception handler without matcher", owner))
				continue
			}
			if _, exists := f.index[h.TargetState]; !exists {
				errs = append(errs, fmt.Errorf("%s: exception handler %s targets unknown state '%s'", owner, h.Name, h.TargetState))
			}
		}
	}

	for _, s := range f.states {
		owner := "state '" + s.ID + "'"
		switch s.Kind {
		case StateAction, StateView, StateDecision:
		case StateSubflow:
			if s.Subflow == nil || s.Subflow.FlowID == "" {
				errs = append(errs, fmt.Errorf("%s: subflow state requires a flow id", owner))
			}
		case StateEnd:
			if len(s.Transitions) > 0 {
				errs = append(errs, fmt.Errorf("%s: end state cannot declare transitions", owner))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown state kind '%s'", owner, s.Kind))
		}
		for _, t := range s.Transitions {
			if t == nil {
				errs = append(errs, fmt.Errorf("%s: nil transition", owner))
				continue
			}
			checkTarget(owner, t)
		}
		checkHandlers(owner, s.ExceptionHandlers)
	}
	for _, t := range f.globalTransitions {
		checkTarget("global", t)
	}
	checkHandlers("flow", f.handlers)

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: flow '%s': %w", ErrInvalidDefinition, cfg.ID, errors.Join(errs...))
	}
	return f, nil
}

// MustFlow is like NewFlow but panics on error. Intended for tests and static definitions.
func MustFlow(cfg FlowConfig) *Flow {
	f, err := NewFlow(cfg)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Flow) ID() string { return f.id }

func (f *Flow) StartState() *State { return f.startState }

// States returns the states in declaration order.
func (f *Flow) States() []*State { return slices.Clone(f.states) }

// State returns the state with the given id.
func (f *Flow) State(id string) (*State, error) {
	s, ok := f.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: '%s' in flow '%s'", ErrStateNotFound, id, f.id)
	}
	return s, nil
}

// HasState reports whether id names a state of the flow.
func (f *Flow) HasState(id string) bool {
	_, ok := f.index[id]
	return ok
}

func (f *Flow) GlobalTransitions() []*Transition { return f.globalTransitions }

func (f *Flow) ExceptionHandlers() []*ExceptionHandler { return f.handlers }

func (f *Flow) StartActions() []Action { return f.startActions }

func (f *Flow) EndActions() []Action { return f.endActions }

func (f *Flow) Variables() []Variable { return f.variables }

// Attribute returns a definition attribute.
func (f *Flow) Attribute(key string) (any, bool) {
	v, ok := f.attributes[key]
	return v, ok
}

// InlineFlow returns an embedded flow by id.
func (f *Flow) InlineFlow(id string) (*Flow, bool) {
	in, ok := f.inline[id]
	return in, ok
}

// InlineFlows returns the ids of the embedded flows.
func (f *Flow) InlineFlows() []string {
	ids := make([]string, 0, len(f.inline))
	for id := range f.inline {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (f *Flow) String() string {
	return "flow(" + f.id + ")"
}
