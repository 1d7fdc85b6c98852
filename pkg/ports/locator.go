package ports

import (
	"context"

	"github.com/aretw0/webflow/pkg/domain"
)

// FlowDefinitionLocator resolves flow definitions by id.
// The engine calls it when an execution starts a flow that is not inline and
// when a restored execution re-binds its sessions.
type FlowDefinitionLocator interface {
	// GetFlow returns domain.ErrFlowNotFound (wrapped) when id is unknown.
	GetFlow(ctx context.Context, id string) (*domain.Flow, error)
}

// FlowLister is implemented by locators that can enumerate their flows,
// used by validation and graph tooling.
type FlowLister interface {
	ListFlows(ctx context.Context) ([]string, error)
}

// LocatorFunc adapts a function to FlowDefinitionLocator.
type LocatorFunc func(ctx context.Context, id string) (*domain.Flow, error)

func (f LocatorFunc) GetFlow(ctx context.Context, id string) (*domain.Flow, error) {
	return f(ctx, id)
}
