package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Repository implements ports.ConfigRepository using Redis.
// Each definition is one JSON value; a per-tenant ZSET (all scores 0) keeps ids ordered.
type Repository struct {
	client *backend.Client
	prefix string
}

// NewRepository creates a config repository sharing the client of a Store.
func NewRepository(client *backend.Client, prefix string) *Repository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Repository{client: client, prefix: prefix}
}

func (r *Repository) key(tenantID, configID string) string {
	return r.prefix + "config:" + tenantID + ":" + configID
}

func (r *Repository) indexKey(tenantID string) string {
	return r.prefix + "configs:" + tenantID
}

// Get loads a definition.
func (r *Repository) Get(ctx context.Context, tenantID, configID string) (*domain.Definition, error) {
	val, err := r.client.Get(ctx, r.key(tenantID, configID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("config %s: %w", configID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get config from redis: %w", err)
	}
	var def domain.Definition
	if err := json.Unmarshal(val, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config %s: %w", configID, err)
	}
	return &def, nil
}

// List returns the config headers of a tenant ordered by id.
func (r *Repository) List(ctx context.Context, tenantID string) ([]domain.LifecycleConfig, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(tenantID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	out := make([]domain.LifecycleConfig, 0, len(ids))
	for _, id := range ids {
		def, err := r.Get(ctx, tenantID, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, def.Config)
	}
	return out, nil
}

// Save replaces the whole definition.
func (r *Repository) Save(ctx context.Context, def *domain.Definition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	tenantID, configID := def.Config.TenantID, def.Config.ID

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(tenantID, configID), data, 0)
	pipe.ZAdd(ctx, r.indexKey(tenantID), backend.Z{Score: 0, Member: configID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save config to redis: %w", err)
	}
	return nil
}

// Delete removes a definition.
func (r *Repository) Delete(ctx context.Context, tenantID, configID string) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.key(tenantID, configID))
	pipe.ZRem(ctx, r.indexKey(tenantID), configID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete config from redis: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("config %s: %w", configID, domain.ErrNotFound)
	}
	return nil
}
