package domain

import (
	"context"
	"fmt"
)

// Action is an opaque unit of behavior executed by the engine.
// It returns the event describing its outcome, or nil for "no outcome".
// Returning an error hands the failure to exception recovery.
type Action interface {
	Execute(ctx context.Context, rc RequestContext) (*Event, error)
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, rc RequestContext) (*Event, error)

func (f ActionFunc) Execute(ctx context.Context, rc RequestContext) (*Event, error) {
	return f(ctx, rc)
}

// NamedAction attaches a name to an action for logs, event sources and graphs.
type NamedAction struct {
	Name   string
	Action Action
}

// Named wraps action with a name.
func Named(name string, action Action) *NamedAction {
	return &NamedAction{Name: name, Action: action}
}

func (n *NamedAction) Execute(ctx context.Context, rc RequestContext) (*Event, error) {
	return n.Action.Execute(ctx, rc)
}

func (n *NamedAction) String() string {
	return n.Name
}

// ActionName returns a printable name for an action.
func ActionName(a Action) string {
	switch v := a.(type) {
	case *NamedAction:
		return v.Name
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%T", a)
	}
}

// SetAttribute returns an action that writes value into the given scope and reports success.
func SetAttribute(kind ScopeKind, key string, value any) Action {
	return Named("set:"+string(kind)+"."+key, ActionFunc(func(_ context.Context, rc RequestContext) (*Event, error) {
		scope, err := ScopeOf(rc, kind)
		if err != nil {
			return nil, err
		}
		scope.Put(key, value)
		return Success(), nil
	}))
}

// ScopeOf selects one of the request context scopes by kind.
func ScopeOf(rc RequestContext, kind ScopeKind) (*Scope, error) {
	switch kind {
	case ScopeRequest:
		return rc.RequestScope(), nil
	case ScopeFlash:
		return rc.FlashScope(), nil
	case ScopeFlow:
		return rc.FlowScope(), nil
	case ScopeConversation:
		return rc.ConversationScope(), nil
	default:
		return nil, fmt.Errorf("unknown scope %q", kind)
	}
}
