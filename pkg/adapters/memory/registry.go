package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/ports"
)

var (
	_ ports.FlowDefinitionLocator = (*Registry)(nil)
	_ ports.FlowLister            = (*Registry)(nil)
)

// Registry is a FlowDefinitionLocator over flows built in code.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]*domain.Flow
}

// NewRegistry creates a registry holding flows.
// It panics if two flows share an id.
func NewRegistry(flows ...*domain.Flow) *Registry {
	r := &Registry{flows: make(map[string]*domain.Flow)}
	for _, f := range flows {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a flow. Ids must be unique.
func (r *Registry) Register(f *domain.Flow) error {
	if f == nil {
		return fmt.Errorf("%w: nil flow", domain.ErrInvalidDefinition)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.flows[f.ID()]; exists {
		return fmt.Errorf("%w: flow '%s' already registered", domain.ErrInvalidDefinition, f.ID())
	}
	r.flows[f.ID()] = f
	return nil
}

// Replace registers f, overwriting any flow with the same id.
// Executions restored afterwards bind to the new definition.
func (r *Registry) Replace(f *domain.Flow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[f.ID()] = f
}

func (r *Registry) GetFlow(_ context.Context, id string) (*domain.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", domain.ErrFlowNotFound, id)
	}
	return f, nil
}

// ListFlows returns the registered ids in sorted order.
func (r *Registry) ListFlows(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.flows)), nil
}
