package ports

import (
	"context"

	"github.com/aretw0/webflow/pkg/domain"
)

// ExecutionStore persists paused executions between requests.
type ExecutionStore interface {
	// Save persists the snapshot under key, replacing any previous one.
	Save(ctx context.Context, key string, snapshot *domain.Snapshot) error

	// Load retrieves the snapshot for key.
	// Returns domain.ErrExecutionNotFound if the execution does not exist.
	Load(ctx context.Context, key string) (*domain.Snapshot, error)

	// Delete removes the snapshot for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys of every stored execution.
	List(ctx context.Context) ([]string, error)
}

// SummaryLister is implemented by stores that can describe executions without
// decoding full snapshots.
type SummaryLister interface {
	Summaries(ctx context.Context) ([]domain.ExecutionSummary, error)
}
