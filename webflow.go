package webflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/webflow/internal/logging"
	"github.com/aretw0/webflow/internal/runtime"
	"github.com/aretw0/webflow/pkg/adapters/memory"
	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/ports"
	"github.com/aretw0/webflow/pkg/session"
)

// Execution is a single conversation driven through a flow and its subflows.
type Execution = runtime.Execution

// Result describes the state an execution was left in by Launch or Resume.
type Result struct {
	Key string
	// Response is what the driver should render. It is nil when the execution
	// ended without a final view.
	Response *domain.Response
	Status   domain.ExecutionStatus
	// Outcome is set once the root session has ended.
	Outcome *domain.Event
	// Conversation holds the conversation scope of an ended execution, which is
	// no longer stored.
	Conversation map[string]any
}

// Paused reports whether the execution waits for another event.
func (r *Result) Paused() bool { return r.Status == domain.ExecutionActive }

// Engine launches and resumes executions, persisting them between requests.
// Each request loads, restores, signals and saves an execution while holding
// the lock for its key, so concurrent requests for one conversation are
// processed one after another. Ended executions are removed from the store.
type Engine struct {
	locator   ports.FlowDefinitionLocator
	store     ports.ExecutionStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	sessions  *session.Manager
	listeners []domain.Listener
	logger    *slog.Logger
	newKey    func() string
	maxDepth  int
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its executions.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithListeners attaches listeners to every execution.
func WithListeners(listeners ...domain.Listener) Option {
	return func(e *Engine) {
		e.listeners = append(e.listeners, listeners...)
	}
}

// WithStore sets where paused executions are kept. Defaults to memory.
func WithStore(store ports.ExecutionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes requests across processes sharing a store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL bounds how long a distributed lock outlives a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithKeyGenerator overrides the random UUID keys given to new executions.
func WithKeyGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newKey = gen
		}
	}
}

// WithMaxHandlingDepth bounds nested exception handling within one request.
func WithMaxHandlingDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// New creates an Engine that resolves flows with locator.
func New(locator ports.FlowDefinitionLocator, opts ...Option) (*Engine, error) {
	if locator == nil {
		return nil, errors.New("a flow definition locator is required")
	}
	e := &Engine{
		locator: locator,
		logger:  logging.NewNop(),
		newKey:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}

	sessionOpts := []session.Option{
		session.WithLogger(e.logger),
		session.WithLockTTL(e.lockTTL),
	}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)
	return e, nil
}

func (e *Engine) executionOptions() []runtime.Option {
	return []runtime.Option{
		runtime.WithLocator(e.locator),
		runtime.WithListeners(e.listeners...),
		runtime.WithLogger(e.logger),
		runtime.WithMaxHandlingDepth(e.maxDepth),
	}
}

// Launch starts a new execution of flowID. A start that fails without being
// handled is not stored.
func (e *Engine) Launch(ctx context.Context, flowID string, input map[string]any) (*Result, error) {
	flow, err := e.locator.GetFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to locate flow: %w", err)
	}

	key := e.newKey()
	var res *Result
	err = e.sessions.WithLock(ctx, key, func(ctx context.Context) error {
		opts := append(e.executionOptions(), runtime.WithKey(key))
		exec := runtime.New(flow, opts...)
		resp, err := exec.Start(ctx, input)
		if err != nil {
			return err
		}
		res, err = e.persist(ctx, exec, resp)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("execution launched", logging.ExecutionKey(key), logging.FlowID(flowID), logging.Status(res.Status))
	return res, nil
}

// Resume signals event to the execution stored under key.
// A request that fails without being handled leaves the stored execution untouched.
func (e *Engine) Resume(ctx context.Context, key string, event *domain.Event) (*Result, error) {
	var res *Result
	err := e.sessions.WithLock(ctx, key, func(ctx context.Context) error {
		exec, err := e.load(ctx, key)
		if err != nil {
			return err
		}
		resp, err := exec.SignalEvent(ctx, event)
		if err != nil {
			return err
		}
		res, err = e.persist(ctx, exec, resp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Restore loads the execution stored under key and re-binds it to the current
// flow definitions. Changes made to it are not saved.
func (e *Engine) Restore(ctx context.Context, key string) (*Execution, error) {
	var exec *Execution
	err := e.sessions.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		if exec, err = e.load(ctx, key); err != nil {
			return err
		}
		return exec.Restore(ctx)
	})
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// Inspect returns the stored snapshot of key.
func (e *Engine) Inspect(ctx context.Context, key string) (*domain.Snapshot, error) {
	return e.sessions.Load(ctx, key)
}

// Delete discards the execution stored under key.
func (e *Engine) Delete(ctx context.Context, key string) error {
	return e.sessions.Delete(ctx, key)
}

// Executions summarizes the stored executions.
func (e *Engine) Executions(ctx context.Context) ([]domain.ExecutionSummary, error) {
	return e.sessions.Summaries(ctx)
}

// Locator returns the locator flows are resolved with.
func (e *Engine) Locator() ports.FlowDefinitionLocator {
	return e.locator
}

func (e *Engine) load(ctx context.Context, key string) (*Execution, error) {
	snap, err := e.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	return runtime.FromSnapshot(snap, e.executionOptions()...)
}

func (e *Engine) persist(ctx context.Context, exec *Execution, resp *domain.Response) (*Result, error) {
	res := &Result{
		Key:      exec.Key(),
		Response: resp,
		Status:   exec.Status(),
		Outcome:  exec.Outcome(),
	}
	if exec.Ended() {
		res.Conversation = exec.ConversationScope().AsMap()
		if err := e.store.Delete(ctx, exec.Key()); err != nil {
			return nil, fmt.Errorf("failed to delete ended execution: %w", err)
		}
		return res, nil
	}

	snap, err := exec.Snapshot()
	if err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, exec.Key(), snap); err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}
	return res, nil
}
