package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/ports"
)

var (
	_ ports.ExecutionStore = (*Store)(nil)
	_ ports.SummaryLister  = (*Store)(nil)
)

// Store implements ports.ExecutionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Snapshot),
	}
}

// Save keeps a copy of snap so later changes by the caller are not visible.
func (s *Store) Save(ctx context.Context, key string, snap *domain.Snapshot) error {
	copied := copySnapshot(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = copied
	return nil
}

// Load returns a copy of the stored snapshot.
func (s *Store) Load(ctx context.Context, key string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[key]
	if !ok {
		return nil, domain.ErrExecutionNotFound
	}
	return copySnapshot(snap), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns the stored keys in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data)), nil
}

func (s *Store) Summaries(ctx context.Context) ([]domain.ExecutionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ExecutionSummary, 0, len(s.data))
	for _, key := range slices.Sorted(maps.Keys(s.data)) {
		sum := s.data[key].Summary()
		sum.Key = key
		out = append(out, sum)
	}
	return out, nil
}

// copySnapshot copies the snapshot and its scope maps. Values inside the maps
// are shared, the same depth of copy a scope gives.
func copySnapshot(snap *domain.Snapshot) *domain.Snapshot {
	out := *snap
	out.Conversation = maps.Clone(snap.Conversation)
	out.Flash = maps.Clone(snap.Flash)
	out.Sessions = make([]domain.SessionSnapshot, len(snap.Sessions))
	for i, ss := range snap.Sessions {
		ss.Scope = maps.Clone(ss.Scope)
		out.Sessions[i] = ss
	}
	if snap.Outcome != nil {
		out.Outcome = domain.NewEvent(snap.Outcome.Source, snap.Outcome.ID, snap.Outcome.Attributes)
	}
	return &out
}
