package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Store implements ports.StatusStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.ObjectLifecycleStatus
	mu   sync.RWMutex
}

// NewStore creates a new in-memory status store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.ObjectLifecycleStatus),
	}
}

// Create stores a fresh status record.
func (s *Store) Create(ctx context.Context, status *domain.ObjectLifecycleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[status.ObjectID]; ok {
		return fmt.Errorf("status of %s: %w", status.ObjectID, domain.ErrAlreadyExists)
	}
	// Deep copy to ensure isolation, similar to serialization
	s.data[status.ObjectID] = status.Clone()
	return nil
}

// Load retrieves a copy of the status record.
func (s *Store) Load(ctx context.Context, objectID string) (*domain.ObjectLifecycleStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.data[objectID]
	if !ok {
		return nil, fmt.Errorf("status of %s: %w", objectID, domain.ErrNotFound)
	}
	return status.Clone(), nil
}

// CompareAndSwap commits a transition if the version still matches.
func (s *Store) CompareAndSwap(ctx context.Context, objectID string, expectedVersion int64, newStateID string, entry domain.HistoryEntry) (*domain.ObjectLifecycleStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.data[objectID]
	if !ok {
		return nil, fmt.Errorf("status of %s: %w", objectID, domain.ErrNotFound)
	}
	if status.Version != expectedVersion {
		return nil, fmt.Errorf("status of %s is at version %d, expected %d: %w",
			objectID, status.Version, expectedVersion, domain.ErrConcurrentModification)
	}
	next := status.Clone()
	next.Apply(newStateID, entry)
	s.data[objectID] = next
	return next.Clone(), nil
}

// RecordOutcomes attaches outcomes to a history entry without bumping the version.
func (s *Store) RecordOutcomes(ctx context.Context, objectID, entryID string, outcomes []domain.ActionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.data[objectID]
	if !ok {
		return fmt.Errorf("status of %s: %w", objectID, domain.ErrNotFound)
	}
	next := status.Clone()
	if !next.AttachOutcomes(entryID, outcomes) {
		return fmt.Errorf("history entry %s of %s: %w", entryID, objectID, domain.ErrNotFound)
	}
	s.data[objectID] = next
	return nil
}

// CountByConfig returns how many objects a config governs.
func (s *Store) CountByConfig(ctx context.Context, tenantID, configID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, status := range s.data {
		if status.TenantID == tenantID && status.ConfigID == configID {
			n++
		}
	}
	return n, nil
}
