package runtime

import (
	"log/slog"

	"github.com/aretw0/webflow/pkg/domain"
)

// requestContext is the view of an execution handed to actions, criteria and
// listeners for the duration of one request.
type requestContext struct {
	exec      *Execution
	request   *domain.Scope
	lastEvent *domain.Event
}

var _ domain.RequestContext = (*requestContext)(nil)

func (rc *requestContext) ExecutionKey() string { return rc.exec.key }

func (rc *requestContext) ActiveFlow() *domain.Flow {
	if s := rc.exec.stack.Peek(); s != nil {
		return s.flow
	}
	return nil
}

func (rc *requestContext) CurrentState() *domain.State {
	if s := rc.exec.stack.Peek(); s != nil {
		return s.state
	}
	return nil
}

func (rc *requestContext) ActiveSession() domain.Session {
	return rc.exec.ActiveSession()
}

func (rc *requestContext) LastEvent() *domain.Event { return rc.lastEvent }

func (rc *requestContext) RequestScope() *domain.Scope { return rc.request }

func (rc *requestContext) FlashScope() *domain.Scope { return rc.exec.flash }

// FlowScope returns the active session's scope. Once the root session ended it
// returns that session's sealed scope.
func (rc *requestContext) FlowScope() *domain.Scope {
	if s := rc.exec.stack.Peek(); s != nil {
		return s.scope
	}
	if rc.exec.lastEnded != nil {
		return rc.exec.lastEnded.scope
	}
	return sealedEmpty()
}

func (rc *requestContext) ConversationScope() *domain.Scope { return rc.exec.conversation }

func (rc *requestContext) Lookup(key string) (any, bool) {
	for _, s := range rc.scopes() {
		if v, ok := s.Get(key); ok {
			return v, true
		}
	}
	return nil, false
}

func (rc *requestContext) Model() map[string]any {
	return domain.MergeScopes(rc.scopes()...)
}

func (rc *requestContext) Logger() *slog.Logger { return rc.exec.logger }

// scopes lists the scopes most local first.
func (rc *requestContext) scopes() []*domain.Scope {
	return []*domain.Scope{rc.request, rc.exec.flash, rc.FlowScope(), rc.exec.conversation}
}

func sealedEmpty() *domain.Scope {
	s := domain.NewScope()
	s.Seal()
	return s
}
