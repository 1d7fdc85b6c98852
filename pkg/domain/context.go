package domain

import "log/slog"

// SessionStatus is the lifecycle position of a flow session.
type SessionStatus string

const (
	SessionCreated  SessionStatus = "created"
	SessionStarting SessionStatus = "starting"
	SessionActive   SessionStatus = "active"
	SessionEnded    SessionStatus = "ended"
)

// Session is one activation of a flow on an execution's session stack.
type Session interface {
	// Flow returns the definition the session runs. It is nil for a session
	// restored from a snapshot that has not been rebound yet.
	Flow() *Flow
	FlowID() string
	// State returns the current state, nil before the first state is entered.
	State() *State
	StateID() string
	Status() SessionStatus
	// Scope is the session's flow scope. It is sealed once the session ends.
	Scope() *Scope
	IsRoot() bool
	// Parent is the session directly below this one on the stack, nil for the root
	// or once this session has been popped.
	Parent() Session
}

// RequestContext is what actions, criteria and listeners see of a running request.
// It is passed explicitly; there is no ambient "current execution".
type RequestContext interface {
	ExecutionKey() string
	// ActiveFlow is the flow of the session on top of the stack.
	ActiveFlow() *Flow
	CurrentState() *State
	ActiveSession() Session
	// LastEvent is the most recent event signaled or produced by an action.
	LastEvent() *Event

	RequestScope() *Scope
	FlashScope() *Scope
	FlowScope() *Scope
	ConversationScope() *Scope

	// Lookup resolves key through request, flash, flow and conversation scopes,
	// most local first.
	Lookup(key string) (any, bool)
	// Model returns the merged view used when rendering a response.
	Model() map[string]any

	Logger() *slog.Logger
}
