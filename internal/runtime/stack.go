package runtime

import (
	"slices"

	"github.com/aretw0/webflow/pkg/domain"
)

// FlowSession is one activation of a flow on the Stack.
type FlowSession struct {
	flow    *domain.Flow
	flowID  string
	state   *domain.State
	stateID string
	status  domain.SessionStatus
	scope   *domain.Scope

	stack *Stack
	// restored is set once the flow and state pointers are bound to the
	// current definitions.
	restored bool
}

var _ domain.Session = (*FlowSession)(nil)

func newSession(stack *Stack, flow *domain.Flow) *FlowSession {
	return &FlowSession{
		flow:     flow,
		flowID:   flow.ID(),
		status:   domain.SessionCreated,
		scope:    domain.NewScope(),
		stack:    stack,
		restored: true,
	}
}

func (s *FlowSession) Flow() *domain.Flow           { return s.flow }
func (s *FlowSession) FlowID() string               { return s.flowID }
func (s *FlowSession) State() *domain.State         { return s.state }
func (s *FlowSession) StateID() string              { return s.stateID }
func (s *FlowSession) Status() domain.SessionStatus { return s.status }
func (s *FlowSession) Scope() *domain.Scope         { return s.scope }

// IsRoot reports whether the session is at the bottom of its stack.
func (s *FlowSession) IsRoot() bool {
	return s.stack != nil && s.stack.indexOf(s) == 0
}

// Parent returns the session directly below this one, or nil.
func (s *FlowSession) Parent() domain.Session {
	if s.stack == nil {
		return nil
	}
	if p := s.stack.below(s); p != nil {
		return p
	}
	return nil
}

func (s *FlowSession) setState(state *domain.State) {
	s.state = state
	s.stateID = state.ID
}

// Stack is the call stack of flow sessions of one execution.
// The parent of a session is the element below it.
type Stack struct {
	sessions []*FlowSession
}

// Push places s on top of the stack.
func (st *Stack) Push(s *FlowSession) {
	s.stack = st
	st.sessions = append(st.sessions, s)
}

// Pop removes and returns the top session, or nil when the stack is empty.
// A popped session no longer has a parent.
func (st *Stack) Pop() *FlowSession {
	if len(st.sessions) == 0 {
		return nil
	}
	top := st.sessions[len(st.sessions)-1]
	st.sessions[len(st.sessions)-1] = nil
	st.sessions = st.sessions[:len(st.sessions)-1]
	top.stack = nil
	return top
}

// Peek returns the top session, or nil when the stack is empty.
func (st *Stack) Peek() *FlowSession {
	if len(st.sessions) == 0 {
		return nil
	}
	return st.sessions[len(st.sessions)-1]
}

// IsEmpty reports whether no session is active.
func (st *Stack) IsEmpty() bool {
	return len(st.sessions) == 0
}

// Len returns the number of sessions.
func (st *Stack) Len() int {
	return len(st.sessions)
}

// Root returns the bottom session, or nil.
func (st *Stack) Root() *FlowSession {
	if len(st.sessions) == 0 {
		return nil
	}
	return st.sessions[0]
}

// Sessions returns the sessions bottom to top.
func (st *Stack) Sessions() []*FlowSession {
	return slices.Clone(st.sessions)
}

func (st *Stack) indexOf(s *FlowSession) int {
	return slices.Index(st.sessions, s)
}

func (st *Stack) below(s *FlowSession) *FlowSession {
	i := st.indexOf(s)
	if i <= 0 {
		return nil
	}
	return st.sessions[i-1]
}
