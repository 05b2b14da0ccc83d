package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog implements ports.AuditLog as an append-only table.
type AuditLog struct {
	pool *pgxpool.Pool
}

func NewAuditLog(pool *pgxpool.Pool) *AuditLog {
	return &AuditLog{pool: pool}
}

const insertAuditSQL = `
INSERT INTO audit_events (occurred_at, tenant_id, actor, action, resource_type, resource_id, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (a *AuditLog) Record(ctx context.Context, event domain.AuditEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}
	_, err = a.pool.Exec(ctx, insertAuditSQL,
		event.OccurredAt, event.TenantID, event.Actor, event.Action, event.ResourceType, event.ResourceID, string(raw))
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}
