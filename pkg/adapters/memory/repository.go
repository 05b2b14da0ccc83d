package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
)

type configKey struct {
	tenantID string
	configID string
}

// Repository implements ports.ConfigRepository using an in-memory map.
// Safe for concurrent use.
type Repository struct {
	defs map[configKey]*domain.Definition
	mu   sync.RWMutex
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{defs: make(map[configKey]*domain.Definition)}
}

// NewFromDefinitions creates a repository pre-loaded with definitions.
// This improves DX for tests and for seeding from a definition directory.
func NewFromDefinitions(defs ...*domain.Definition) (*Repository, error) {
	r := NewRepository()
	for _, d := range defs {
		if d == nil || d.Config.ID == "" {
			return nil, fmt.Errorf("definition missing config id")
		}
		r.defs[configKey{d.Config.TenantID, d.Config.ID}] = d.Clone()
	}
	return r, nil
}

// Get returns a copy of the definition.
func (r *Repository) Get(ctx context.Context, tenantID, configID string) (*domain.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[configKey{tenantID, configID}]
	if !ok {
		return nil, fmt.Errorf("config %s: %w", configID, domain.ErrNotFound)
	}
	return def.Clone(), nil
}

// List returns the config headers of a tenant ordered by id.
func (r *Repository) List(ctx context.Context, tenantID string) ([]domain.LifecycleConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.LifecycleConfig{}
	for key, def := range r.defs {
		if key.tenantID == tenantID {
			out = append(out, def.Config)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save replaces the whole definition.
func (r *Repository) Save(ctx context.Context, def *domain.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defs[configKey{def.Config.TenantID, def.Config.ID}] = def.Clone()
	return nil
}

// Delete removes a definition.
func (r *Repository) Delete(ctx context.Context, tenantID, configID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := configKey{tenantID, configID}
	if _, ok := r.defs[key]; !ok {
		return fmt.Errorf("config %s: %w", configID, domain.ErrNotFound)
	}
	delete(r.defs, key)
	return nil
}
