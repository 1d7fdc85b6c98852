package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/webflow/pkg/domain"
)

var (
	// ErrActionNotFound is returned when no action is registered under a name.
	ErrActionNotFound = errors.New("action not found")

	// ErrCriteriaNotFound is returned when no condition is registered under a name.
	ErrCriteriaNotFound = errors.New("criteria not found")
)

// Registry maps names used in flow documents to actions and transition conditions.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	actions  map[string]domain.Action
	criteria map[string]domain.Criteria
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions:  make(map[string]domain.Action),
		criteria: make(map[string]domain.Criteria),
	}
}

// RegisterCriteria adds a condition that documents reference as "ref:name".
func (r *Registry) RegisterCriteria(name string, fn domain.Condition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.criteria[name] = domain.When(domain.ReferencePrefix+name, fn)
}

// LookupCriteria returns the condition registered under name.
func (r *Registry) LookupCriteria(name string) (domain.Criteria, error) {
	r.mu.RLock()
	c, ok := r.criteria[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCriteriaNotFound, name)
	}
	return c, nil
}

// Register adds an action. An action already registered under name is replaced.
// The action is wrapped so that logs and event sources carry name.
func (r *Registry) Register(name string, action domain.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = domain.Named(name, action)
}

// RegisterFunc registers a function as an action.
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, rc domain.RequestContext) (*domain.Event, error)) {
	r.Register(name, domain.ActionFunc(fn))
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (domain.Action, error) {
	r.mu.RLock()
	a, ok := r.actions[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}
	return a, nil
}

// Resolve looks up every name, reporting all missing ones at once.
func (r *Registry) Resolve(names ...string) ([]domain.Action, error) {
	actions := make([]domain.Action, 0, len(names))
	var errs []error
	for _, name := range names {
		a, err := r.Lookup(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		actions = append(actions, a)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return actions, nil
}

// Execute runs the action registered under name outside of a flow, which is
// handy for tests and tooling.
func (r *Registry) Execute(ctx context.Context, name string, rc domain.RequestContext) (*domain.Event, error) {
	a, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return a.Execute(ctx, rc)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.actions))
}
