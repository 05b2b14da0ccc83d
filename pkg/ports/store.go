package ports

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
)

// ConfigRepository persists lifecycle definitions, scoped by tenant.
type ConfigRepository interface {
	// Get returns the full definition of a config.
	// Returns domain.ErrNotFound if the config does not exist for that tenant.
	Get(ctx context.Context, tenantID, configID string) (*domain.Definition, error)

	// List returns the config headers of a tenant, ordered by id.
	List(ctx context.Context, tenantID string) ([]domain.LifecycleConfig, error)

	// Save creates or replaces the whole definition.
	Save(ctx context.Context, def *domain.Definition) error

	// Delete removes a config and everything it owns.
	// Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, tenantID, configID string) error
}

// StatusStore persists object lifecycle status records.
// Records are never deleted; they only change through CompareAndSwap.
type StatusStore interface {
	// Create stores a fresh status record.
	// Returns domain.ErrAlreadyExists if the object already has one.
	Create(ctx context.Context, status *domain.ObjectLifecycleStatus) error

	// Load returns the status of an object.
	// Returns domain.ErrNotFound if the object was never enrolled.
	Load(ctx context.Context, objectID string) (*domain.ObjectLifecycleStatus, error)

	// CompareAndSwap moves the object to newStateID and appends entry, but only if the
	// stored version still equals expectedVersion. On success the version is bumped by one
	// and the updated record is returned. Otherwise it returns domain.ErrConcurrentModification
	// and nothing is written.
	CompareAndSwap(ctx context.Context, objectID string, expectedVersion int64, newStateID string, entry domain.HistoryEntry) (*domain.ObjectLifecycleStatus, error)

	// RecordOutcomes attaches action outcomes to an existing history entry.
	// It does not bump the version.
	RecordOutcomes(ctx context.Context, objectID, entryID string, outcomes []domain.ActionOutcome) error

	// CountByConfig returns how many objects a config governs.
	CountByConfig(ctx context.Context, tenantID, configID string) (int, error)
}
