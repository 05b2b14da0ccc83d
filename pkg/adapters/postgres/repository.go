package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements ports.ConfigRepository on PostgreSQL.
// The header columns are queryable; the full aggregate lives in a JSONB column.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const getConfigSQL = `SELECT definition FROM lifecycle_configs WHERE tenant_id = $1 AND id = $2`

func (r *Repository) Get(ctx context.Context, tenantID, configID string) (*domain.Definition, error) {
	var raw []byte
	if err := r.pool.QueryRow(ctx, getConfigSQL, tenantID, configID).Scan(&raw); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("config %s: %w", configID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query config: %w", err)
	}
	var def domain.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", configID, err)
	}
	return &def, nil
}

const listConfigsSQL = `
SELECT id, tenant_id, object_type, name, status, created_at, updated_at
FROM lifecycle_configs
WHERE tenant_id = $1
ORDER BY id`

func (r *Repository) List(ctx context.Context, tenantID string) ([]domain.LifecycleConfig, error) {
	rows, err := r.pool.Query(ctx, listConfigsSQL, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer rows.Close()

	out := []domain.LifecycleConfig{}
	for rows.Next() {
		var c domain.LifecycleConfig
		var status string
		if err := rows.Scan(&c.ID, &c.TenantID, &c.ObjectType, &c.Name, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		c.Status = domain.ConfigStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

const saveConfigSQL = `
INSERT INTO lifecycle_configs (tenant_id, id, object_type, name, status, definition, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (tenant_id, id) DO UPDATE SET
    object_type = EXCLUDED.object_type,
    name        = EXCLUDED.name,
    status      = EXCLUDED.status,
    definition  = EXCLUDED.definition,
    updated_at  = EXCLUDED.updated_at`

func (r *Repository) Save(ctx context.Context, def *domain.Definition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	c := def.Config
	_, err = r.pool.Exec(ctx, saveConfigSQL,
		c.TenantID, c.ID, c.ObjectType, c.Name, string(c.Status), raw, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, tenantID, configID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lifecycle_configs WHERE tenant_id = $1 AND id = $2`, tenantID, configID)
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("config %s: %w", configID, domain.ErrNotFound)
	}
	return nil
}
