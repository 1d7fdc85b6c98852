package domain

import (
	"context"
	"fmt"
	"strings"
)

// CriteriaKind orders transition matching. Lower kinds are tried first, so an
// explicit event id always wins over an expression, and both win over a wildcard,
// regardless of declaration order.
type CriteriaKind int

const (
	CriteriaEventID CriteriaKind = iota
	CriteriaExpression
	CriteriaWildcard
)

// WildcardEventID is the textual form of the wildcard criteria.
const WildcardEventID = "*"

// Criteria decides whether a transition matches the current request.
type Criteria interface {
	Kind() CriteriaKind
	Matches(ctx context.Context, rc RequestContext) (bool, error)
	String() string
}

// Condition is a boolean test over the request context.
type Condition func(ctx context.Context, rc RequestContext) (bool, error)

type eventIDCriteria string

func (c eventIDCriteria) Kind() CriteriaKind { return CriteriaEventID }

func (c eventIDCriteria) Matches(_ context.Context, rc RequestContext) (bool, error) {
	ev := rc.LastEvent()
	return ev != nil && ev.ID == string(c), nil
}

func (c eventIDCriteria) String() string { return string(c) }

type wildcardCriteria struct{}

func (wildcardCriteria) Kind() CriteriaKind { return CriteriaWildcard }

func (wildcardCriteria) Matches(context.Context, RequestContext) (bool, error) { return true, nil }

func (wildcardCriteria) String() string { return WildcardEventID }

type conditionCriteria struct {
	name string
	fn   Condition
}

func (c *conditionCriteria) Kind() CriteriaKind { return CriteriaExpression }

func (c *conditionCriteria) Matches(ctx context.Context, rc RequestContext) (bool, error) {
	return c.fn(ctx, rc)
}

func (c *conditionCriteria) String() string { return c.name }

// On matches events whose id equals eventID.
func On(eventID string) Criteria {
	return eventIDCriteria(eventID)
}

// Always matches any event.
func Always() Criteria {
	return wildcardCriteria{}
}

// When matches when fn returns true. name is used in errors and graphs.
func When(name string, fn Condition) Criteria {
	return &conditionCriteria{name: name, fn: fn}
}

// ReferencePrefix marks criteria that are registered outside the flow document.
const ReferencePrefix = "ref:"

// ExpressionCompiler turns the body of a "${...}" criteria into Criteria.
type ExpressionCompiler func(expression string) (Criteria, error)

// CriteriaLookup resolves the name of a "ref:" criteria.
type CriteriaLookup func(name string) (Criteria, error)

// ParseCriteria decodes the textual criteria form used in flow documents:
// "" or "*" is the wildcard, "${expr}" is compiled by compile, "ref:name" is
// resolved by lookup, anything else is an event id.
func ParseCriteria(text string, compile ExpressionCompiler, lookup CriteriaLookup) (Criteria, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "" || text == WildcardEventID:
		return Always(), nil
	case strings.HasPrefix(text, "${") && strings.HasSuffix(text, "}"):
		if compile == nil {
			return nil, fmt.Errorf("%w: no expression compiler for %q", ErrInvalidDefinition, text)
		}
		return compile(strings.TrimSpace(text[2 : len(text)-1]))
	case strings.HasPrefix(text, ReferencePrefix):
		name := strings.TrimSpace(strings.TrimPrefix(text, ReferencePrefix))
		if name == "" {
			return nil, fmt.Errorf("%w: empty criteria reference", ErrInvalidDefinition)
		}
		if lookup == nil {
			return nil, fmt.Errorf("%w: no criteria registry for %q", ErrInvalidDefinition, text)
		}
		return lookup(name)
	default:
		return On(text), nil
	}
}

// TargetResolver computes the id of the state a transition enters.
// An empty id means "stay": the current view is rendered again.
type TargetResolver interface {
	Resolve(ctx context.Context, rc RequestContext) (string, error)
	String() string
}

// StaticTarget always resolves to the same state id.
type StaticTarget string

func (t StaticTarget) Resolve(context.Context, RequestContext) (string, error) {
	return string(t), nil
}

func (t StaticTarget) String() string { return string(t) }

// TargetFunc resolves a target dynamically.
type TargetFunc func(ctx context.Context, rc RequestContext) (string, error)

func (f TargetFunc) Resolve(ctx context.Context, rc RequestContext) (string, error) {
	return f(ctx, rc)
}

func (f TargetFunc) String() string { return "<dynamic>" }

// To returns a static target resolver.
func To(stateID string) TargetResolver {
	return StaticTarget(stateID)
}

// Transition is a directed edge out of a state.
type Transition struct {
	On Criteria
	// To resolves the target state. Nil means the transition re-renders the current view.
	To TargetResolver
	// Actions run before the transition crosses; an error aborts it.
	Actions    []Action
	Attributes map[string]any
}

// Criteria returns the matching criteria, defaulting to the wildcard.
func (t *Transition) Criteria() Criteria {
	if t.On == nil {
		return Always()
	}
	return t.On
}

// StaticTargetID returns the target id when it is known without a request.
func (t *Transition) StaticTargetID() (string, bool) {
	if t.To == nil {
		return "", false
	}
	st, ok := t.To.(StaticTarget)
	return string(st), ok
}

func (t *Transition) String() string {
	target := "<refresh>"
	if t.To != nil {
		target = t.To.String()
	}
	return fmt.Sprintf("on %s to %s", t.Criteria(), target)
}
