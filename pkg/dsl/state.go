package dsl

import "github.com/aretw0/webflow/pkg/domain"

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	state   *domain.State
	builder *Builder
}

func (s *StateBuilder) transition(c domain.Criteria, to domain.TargetResolver, actions []domain.Action) *StateBuilder {
	s.state.Transitions = append(s.state.Transitions, &domain.Transition{On: c, To: to, Actions: actions})
	return s
}

// On adds a transition taken when event is signaled. actions run before it crosses.
func (s *StateBuilder) On(event, target string, actions ...domain.Action) *StateBuilder {
	return s.transition(domain.On(event), domain.To(target), actions)
}

// When adds a transition guarded by criteria, such as a compiled expression.
func (s *StateBuilder) When(c domain.Criteria, target string, actions ...domain.Action) *StateBuilder {
	return s.transition(c, domain.To(target), actions)
}

// Otherwise adds a wildcard transition, tried after every other criteria.
func (s *StateBuilder) Otherwise(target string, actions ...domain.Action) *StateBuilder {
	return s.transition(domain.Always(), domain.To(target), actions)
}

// Refresh adds a transition that runs actions and renders the view again.
func (s *StateBuilder) Refresh(event string, actions ...domain.Action) *StateBuilder {
	return s.transition(domain.On(event), nil, actions)
}

// Route adds a transition whose target is computed per request.
func (s *StateBuilder) Route(c domain.Criteria, to domain.TargetResolver, actions ...domain.Action) *StateBuilder {
	return s.transition(c, to, actions)
}

// Entry adds actions run when the state is entered.
func (s *StateBuilder) Entry(actions ...domain.Action) *StateBuilder {
	s.state.EntryActions = append(s.state.EntryActions, actions...)
	return s
}

// Exit adds actions run when a transition leaves the state.
func (s *StateBuilder) Exit(actions ...domain.Action) *StateBuilder {
	s.state.ExitActions = append(s.state.ExitActions, actions...)
	return s
}

// Handle adds exception handlers, tried in order.
func (s *StateBuilder) Handle(handlers ...*domain.ExceptionHandler) *StateBuilder {
	s.state.ExceptionHandlers = append(s.state.ExceptionHandlers, handlers...)
	return s
}

// Render sets the view name of a view or end state.
// A "redirect:" prefix asks for an external redirect.
func (s *StateBuilder) Render(view string) *StateBuilder {
	s.state.View = view
	return s
}

// Input maps attributes of the parent into the subflow's flow scope.
func (s *StateBuilder) Input(mappings ...domain.Mapping) *StateBuilder {
	if s.state.Subflow != nil {
		s.state.Subflow.Input = append(s.state.Subflow.Input, mappings...)
	}
	return s
}

// Output maps values out of an ending session: for an end state from its
// scopes into the output map, for a subflow state from the child's output
// into the parent's flow scope.
func (s *StateBuilder) Output(mappings ...domain.Mapping) *StateBuilder {
	if s.state.Subflow != nil {
		s.state.Subflow.Output = append(s.state.Subflow.Output, mappings...)
		return s
	}
	s.state.Output = append(s.state.Output, mappings...)
	return s
}

// Attr sets a state attribute.
func (s *StateBuilder) Attr(key string, value any) *StateBuilder {
	if s.state.Attributes == nil {
		s.state.Attributes = make(map[string]any)
	}
	s.state.Attributes[key] = value
	return s
}

// Flow returns the owning builder, for chaining across states.
func (s *StateBuilder) Flow() *Builder { return s.builder }

// Map is shorthand for a mapping that keeps the attribute name.
func Map(names ...string) []domain.Mapping {
	out := make([]domain.Mapping, len(names))
	for i, n := range names {
		out[i] = domain.Mapping{Source: n}
	}
	return out
}
