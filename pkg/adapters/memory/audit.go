package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
)

// AuditLog implements ports.AuditLog by logging each event and keeping it in memory.
type AuditLog struct {
	logger *slog.Logger
	mu     sync.Mutex
	events []domain.AuditEvent
}

// NewAuditLog creates an audit log. A nil logger only keeps events in memory.
func NewAuditLog(logger *slog.Logger) *AuditLog {
	return &AuditLog{logger: logger}
}

// Record validates and stores an event.
func (a *AuditLog) Record(ctx context.Context, event domain.AuditEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()

	if a.logger != nil {
		a.logger.InfoContext(ctx, "audit",
			"tenant_id", event.TenantID,
			"actor", event.Actor,
			"action", event.Action,
			"resource_type", event.ResourceType,
			"resource_id", event.ResourceID)
	}
	return nil
}

// Events returns a snapshot of recorded events.
func (a *AuditLog) Events() []domain.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditEvent(nil), a.events...)
}
