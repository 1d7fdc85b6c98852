package domain

import "context"

// Listener observes the lifecycle of an execution. Callbacks run synchronously,
// in registration order, on the goroutine processing the request.
//
// Callbacks returning an error take part in control flow: a non-nil error aborts
// the operation in progress and is handed to exception recovery. Panics in the
// other callbacks are recovered and logged; they never change the outcome.
type Listener interface {
	RequestSubmitted(ctx context.Context, rc RequestContext)
	RequestProcessed(ctx context.Context, rc RequestContext)

	// SessionStarting runs once session is pushed, before its start state is
	// entered. It may mutate input or veto the start.
	SessionStarting(ctx context.Context, rc RequestContext, session Session, input map[string]any) error
	SessionStarted(ctx context.Context, rc RequestContext, session Session)

	EventSignaled(ctx context.Context, rc RequestContext, event *Event)
	TransitionExecuting(ctx context.Context, rc RequestContext, transition *Transition)

	// StateEntering may veto entering state.
	StateEntering(ctx context.Context, rc RequestContext, state *State) error
	// StateEntered runs after the current state pointer moved; an error aborts the
	// entry before the state's behavior executes.
	StateEntered(ctx context.Context, rc RequestContext, previous, state *State) error
	Paused(ctx context.Context, rc RequestContext, response *Response)

	// SessionEnding may inspect or mutate output, or veto the end of the session.
	SessionEnding(ctx context.Context, rc RequestContext, session Session, output map[string]any) error
	// SessionEnded receives a session whose flow scope is sealed.
	SessionEnded(ctx context.Context, rc RequestContext, session Session, output map[string]any)

	ExceptionThrown(ctx context.Context, rc RequestContext, err error)
	ExceptionHandled(ctx context.Context, rc RequestContext, err error, handler *ExceptionHandler)
}

// NopListener implements every Listener callback as a no-op.
// Embed it to observe only a few events.
type NopListener struct{}

func (NopListener) RequestSubmitted(context.Context, RequestContext) {}
func (NopListener) RequestProcessed(context.Context, RequestContext) {}
func (NopListener) SessionStarting(context.Context, RequestContext, Session, map[string]any) error {
	return nil
}
func (NopListener) SessionStarted(context.Context, RequestContext, Session)          {}
func (NopListener) EventSignaled(context.Context, RequestContext, *Event)            {}
func (NopListener) TransitionExecuting(context.Context, RequestContext, *Transition) {}
func (NopListener) StateEntering(context.Context, RequestContext, *State) error      { return nil }
func (NopListener) StateEntered(context.Context, RequestContext, *State, *State) error {
	return nil
}
func (NopListener) Paused(context.Context, RequestContext, *Response) {}
func (NopListener) SessionEnding(context.Context, RequestContext, Session, map[string]any) error {
	return nil
}
func (NopListener) SessionEnded(context.Context, RequestContext, Session, map[string]any) {}
func (NopListener) ExceptionThrown(context.Context, RequestContext, error)                {}
func (NopListener) ExceptionHandled(context.Context, RequestContext, error, *ExceptionHandler) {
}

// LifecycleHooks is a Listener built from optional callbacks. Nil fields are skipped.
type LifecycleHooks struct {
	OnRequestSubmitted    func(context.Context, RequestContext)
	OnRequestProcessed    func(context.Context, RequestContext)
	OnSessionStarting     func(context.Context, RequestContext, Session, map[string]any) error
	OnSessionStarted      func(context.Context, RequestContext, Session)
	OnEventSignaled       func(context.Context, RequestContext, *Event)
	OnTransitionExecuting func(context.Context, RequestContext, *Transition)
	OnStateEntering       func(context.Context, RequestContext, *State) error
	OnStateEntered        func(context.Context, RequestContext, *State, *State) error
	OnPaused              func(context.Context, RequestContext, *Response)
	OnSessionEnding       func(context.Context, RequestContext, Session, map[string]any) error
	OnSessionEnded        func(context.Context, RequestContext, Session, map[string]any)
	OnExceptionThrown     func(context.Context, RequestContext, error)
	OnExceptionHandled    func(context.Context, RequestContext, error, *ExceptionHandler)
}

var _ Listener = (*LifecycleHooks)(nil)

func (h *LifecycleHooks) RequestSubmitted(ctx context.Context, rc RequestContext) {
	if h.OnRequestSubmitted != nil {
		h.OnRequestSubmitted(ctx, rc)
	}
}

func (h *LifecycleHooks) RequestProcessed(ctx context.Context, rc RequestContext) {
	if h.OnRequestProcessed != nil {
		h.OnRequestProcessed(ctx, rc)
	}
}

func (h *LifecycleHooks) SessionStarting(ctx context.Context, rc RequestContext, s Session, input map[string]any) error {
	if h.OnSessionStarting != nil {
		return h.OnSessionStarting(ctx, rc, s, input)
	}
	return nil
}

func (h *LifecycleHooks) SessionStarted(ctx context.Context, rc RequestContext, s Session) {
	if h.OnSessionStarted != nil {
		h.OnSessionStarted(ctx, rc, s)
	}
}

func (h *LifecycleHooks) EventSignaled(ctx context.Context, rc RequestContext, ev *Event) {
	if h.OnEventSignaled != nil {
		h.OnEventSignaled(ctx, rc, ev)
	}
}

func (h *LifecycleHooks) TransitionExecuting(ctx context.Context, rc RequestContext, t *Transition) {
	if h.OnTransitionExecuting != nil {
		h.OnTransitionExecuting(ctx, rc, t)
	}
}

func (h *LifecycleHooks) StateEntering(ctx context.Context, rc RequestContext, s *State) error {
	if h.OnStateEntering != nil {
		return h.OnStateEntering(ctx, rc, s)
	}
	return nil
}

func (h *LifecycleHooks) StateEntered(ctx context.Context, rc RequestContext, previous, s *State) error {
	if h.OnStateEntered != nil {
		return h.OnStateEntered(ctx, rc, previous, s)
	}
	return nil
}

func (h *LifecycleHooks) Paused(ctx context.Context, rc RequestContext, resp *Response) {
	if h.OnPaused != nil {
		h.OnPaused(ctx, rc, resp)
	}
}

func (h *LifecycleHooks) SessionEnding(ctx context.Context, rc RequestContext, s Session, output map[string]any) error {
	if h.OnSessionEnding != nil {
		return h.OnSessionEnding(ctx, rc, s, output)
	}
	return nil
}

func (h *LifecycleHooks) SessionEnded(ctx context.Context, rc RequestContext, s Session, output map[string]any) {
	if h.OnSessionEnded != nil {
		h.OnSessionEnded(ctx, rc, s, output)
	}
}

func (h *LifecycleHooks) ExceptionThrown(ctx context.Context, rc RequestContext, err error) {
	if h.OnExceptionThrown != nil {
		h.OnExceptionThrown(ctx, rc, err)
	}
}

func (h *LifecycleHooks) ExceptionHandled(ctx context.Context, rc RequestContext, err error, handler *ExceptionHandler) {
	if h.OnExceptionHandled != nil {
		h.OnExceptionHandled(ctx, rc, err, handler)
	}
}
