package domain

import (
	"errors"
	"strings"
	"time"
)

// Audit actions.
const (
	AuditConfigCreated      = "config.created"
	AuditConfigUpdated      = "config.updated"
	AuditConfigDeleted      = "config.deleted"
	AuditConfigActivated    = "config.activated"
	AuditConfigDisabled     = "config.disabled"
	AuditStateSaved         = "state.saved"
	AuditStateDeleted       = "state.deleted"
	AuditTransitionSaved    = "transition.saved"
	AuditTransitionDeleted  = "transition.deleted"
	AuditConditionsReplaced = "conditions.replaced"
	AuditActionsReplaced    = "actions.replaced"
	AuditObjectEnrolled     = "object.enrolled"
	AuditTransitionApplied  = "object.transitioned"
)

// AuditEvent records one config mutation or one committed transition.
type AuditEvent struct {
	OccurredAt   time.Time      `json:"occurred_at"`
	TenantID     string         `json:"tenant_id"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Payload      map[string]any `json:"payload,omitempty"`
}

func (e AuditEvent) Validate() error {
	if e.OccurredAt.IsZero() {
		return errors.New("OccurredAt is required")
	}
	if strings.TrimSpace(e.Actor) == "" {
		return errors.New("Actor is required")
	}
	if strings.TrimSpace(e.Action) == "" {
		return errors.New("Action is required")
	}
	if strings.TrimSpace(e.ResourceType) == "" {
		return errors.New("ResourceType is required")
	}
	if strings.TrimSpace(e.ResourceID) == "" {
		return errors.New("ResourceID is required")
	}
	return nil
}
