package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/ports"
)

// DefaultMaxHandlingDepth bounds how many times a failure raised while entering
// a recovery state is itself handled within one request.
const DefaultMaxHandlingDepth = 16

// Execution drives one conversation through a flow and its subflows.
// It processes one request at a time and is not safe for concurrent use;
// callers serialize access per execution (see pkg/session).
type Execution struct {
	key     string
	flowID  string
	flow    *domain.Flow
	locator ports.FlowDefinitionLocator

	stack        Stack
	conversation *domain.Scope
	flash        *domain.Scope
	lastEnded    *FlowSession
	outcome      *domain.Event

	listeners []domain.Listener
	logger    *slog.Logger
	now       func() time.Time
	maxDepth  int

	started   bool
	restored  bool
	inRequest bool
}

// Option configures an Execution.
type Option func(*Execution)

// WithKey sets the key the execution is stored under.
func WithKey(key string) Option {
	return func(e *Execution) {
		e.key = key
	}
}

// WithLocator sets the locator used for subflows and restoration.
func WithLocator(locator ports.FlowDefinitionLocator) Option {
	return func(e *Execution) {
		e.locator = locator
	}
}

// WithListeners appends listeners, notified in the given order.
func WithListeners(listeners ...domain.Listener) Option {
	return func(e *Execution) {
		e.listeners = append(e.listeners, listeners...)
	}
}

// WithLogger sets the execution logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Execution) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source used for snapshots.
func WithClock(now func() time.Time) Option {
	return func(e *Execution) {
		e.now = now
	}
}

// WithMaxHandlingDepth overrides DefaultMaxHandlingDepth.
func WithMaxHandlingDepth(depth int) Option {
	return func(e *Execution) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

func newExecution(opts []Option) *Execution {
	e := &Execution{
		conversation: domain.NewScope(),
		flash:        domain.NewScope(),
		logger:       logging.NewNop(),
		now:          time.Now,
		maxDepth:     DefaultMaxHandlingDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.key != "" {
		e.logger = e.logger.With(logging.ExecutionKey(e.key))
	}
	return e
}

// New creates an execution of flow that has not started yet.
func New(flow *domain.Flow, opts ...Option) *Execution {
	e := newExecution(opts)
	e.flow = flow
	e.flowID = flow.ID()
	e.restored = true
	return e
}

// Key returns the key the execution is stored under.
func (e *Execution) Key() string { return e.key }

// FlowID returns the id of the root flow.
func (e *Execution) FlowID() string { return e.flowID }

// Started reports whether Start completed once.
func (e *Execution) Started() bool { return e.started }

// IsActive reports whether the execution has sessions and can receive events.
func (e *Execution) IsActive() bool { return e.started && !e.stack.IsEmpty() }

// Ended reports whether the root session ended.
func (e *Execution) Ended() bool { return e.started && e.stack.IsEmpty() }

// Status summarizes the lifecycle position of the execution.
func (e *Execution) Status() domain.ExecutionStatus {
	switch {
	case !e.started:
		return domain.ExecutionCreated
	case e.stack.IsEmpty():
		return domain.ExecutionEnded
	default:
		return domain.ExecutionActive
	}
}

// ActiveSession returns the session on top of the stack, or nil.
func (e *Execution) ActiveSession() domain.Session {
	if s := e.stack.Peek(); s != nil {
		return s
	}
	return nil
}

// Sessions returns the sessions bottom to top.
func (e *Execution) Sessions() []*FlowSession { return e.stack.Sessions() }

// ConversationScope stays readable after the execution ended.
func (e *Execution) ConversationScope() *domain.Scope { return e.conversation }

// FlashScope is cleared when the next event is signaled.
func (e *Execution) FlashScope() *domain.Scope { return e.flash }

// Outcome is the event the root session ended with, nil while active.
func (e *Execution) Outcome() *domain.Event { return e.outcome }

// Start launches the root flow. input seeds the root flow scope.
// The returned response is nil when the flow ended without a final view.
func (e *Execution) Start(ctx context.Context, input map[string]any) (*domain.Response, error) {
	if e.inRequest {
		return nil, domain.ErrRequestInProgress
	}
	if e.started || !e.stack.IsEmpty() {
		return nil, domain.ErrAlreadyStarted
	}
	if e.flow == nil {
		return nil, fmt.Errorf("%w: execution has no root flow", domain.ErrFlowNotFound)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return e.process(ctx, nil, func(rc *requestContext) (*domain.Response, error) {
		e.started = true
		e.logger.Debug("starting execution", logging.FlowID(e.flowID))
		return e.startSession(ctx, rc, e.flow, input)
	})
}

// SignalEvent resumes a paused execution with event. The current state must
// be a view state. A restored execution is re-bound to its definitions first.
func (e *Execution) SignalEvent(ctx context.Context, event *domain.Event) (*domain.Response, error) {
	if e.inRequest {
		return nil, domain.ErrRequestInProgress
	}
	if !e.started {
		return nil, domain.ErrExecutionNotStarted
	}
	if e.stack.IsEmpty() {
		return nil, domain.ErrExecutionEnded
	}
	if event == nil || event.ID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.Restore(ctx); err != nil {
		return nil, err
	}

	active := e.stack.Peek()
	if active.state == nil || !active.state.CanPause() {
		return nil, fmt.Errorf("%w: '%s' in flow '%s'", domain.ErrNotPaused, active.stateID, active.flowID)
	}

	return e.process(ctx, event, func(rc *requestContext) (*domain.Response, error) {
		e.flash.Clear()
		e.logger.Debug("event signaled",
			logging.FlowID(active.flowID),
			logging.StateID(active.stateID),
			logging.EventID(event.ID),
		)
		e.notify("EventSignaled", func(l domain.Listener) { l.EventSignaled(ctx, rc, event) })
		return e.handleEvent(ctx, rc, active.state)
	})
}

// process runs one request: it brackets work with request notifications, routes
// failures through exception recovery and rolls the execution back to where it
// was when recovery gives up.
func (e *Execution) process(ctx context.Context, event *domain.Event, work func(*requestContext) (*domain.Response, error)) (*domain.Response, error) {
	rc := &requestContext{exec: e, request: domain.NewScope(), lastEvent: event}
	cp := e.checkpoint()

	e.inRequest = true
	defer func() { e.inRequest = false }()

	e.notify("RequestSubmitted", func(l domain.Listener) { l.RequestSubmitted(ctx, rc) })
	defer e.notify("RequestProcessed", func(l domain.Listener) { l.RequestProcessed(ctx, rc) })

	resp, err := work(rc)
	if err != nil {
		resp, err = e.handleException(ctx, rc, err, 0)
	}
	if err != nil {
		e.rollback(cp)
		e.logger.Debug("request failed", logging.Error(err))
		return nil, err
	}

	if resp.Paused() && !e.stack.IsEmpty() {
		e.notify("Paused", func(l domain.Listener) { l.Paused(ctx, rc, resp) })
	}
	return resp, nil
}

// checkpoint captures what rollback needs to undo a failed request.
type checkpoint struct {
	started      bool
	sessions     []*FlowSession
	values       []FlowSession
	scopes       []map[string]any
	conversation map[string]any
	flash        map[string]any
	outcome      *domain.Event
	lastEnded    *FlowSession
}

func (e *Execution) checkpoint() *checkpoint {
	cp := &checkpoint{
		started:      e.started,
		sessions:     e.stack.Sessions(),
		conversation: e.conversation.AsMap(),
		flash:        e.flash.AsMap(),
		outcome:      e.outcome,
		lastEnded:    e.lastEnded,
	}
	for _, s := range cp.sessions {
		cp.values = append(cp.values, *s)
		cp.scopes = append(cp.scopes, s.scope.AsMap())
	}
	return cp
}

// rollback restores the captured stack in place, so session pointers handed
// out before the request stay valid.
func (e *Execution) rollback(cp *checkpoint) {
	e.stack = Stack{}
	for i, s := range cp.sessions {
		*s = cp.values[i]
		s.scope = domain.ScopeFrom(cp.scopes[i])
		e.stack.Push(s)
	}
	e.started = cp.started
	e.conversation.Clear()
	e.conversation.PutAll(cp.conversation)
	e.flash.Clear()
	e.flash.PutAll(cp.flash)
	e.outcome = cp.outcome
	e.lastEnded = cp.lastEnded
}
