package middleware_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewAuditLog(nil)
	audit := middleware.NewPIIMiddleware([]string{"(?i)email", "ssn"})(underlying)

	transitionCtx := map[string]any{
		"email":          "jdoe@example.com",
		"email_verified": true,
		"profile": map[string]any{
			"age":        42,
			"ssn_number": "999-99-9999",
		},
		"contacts": []any{map[string]any{"Email": "other@example.com", "kind": "backup"}},
	}
	event := domain.AuditEvent{
		OccurredAt:   time.Now(),
		TenantID:     "acme",
		Actor:        "alice",
		Action:       domain.AuditTransitionApplied,
		ResourceType: "object",
		ResourceID:   "u-1",
		Payload:      map[string]any{"transition_id": "activate", "context": transitionCtx},
	}
	require.NoError(t, audit.Record(context.Background(), event))

	// The caller's map is left alone.
	assert.Equal(t, "jdoe@example.com", transitionCtx["email"])

	events := underlying.Events()
	require.Len(t, events, 1)
	stored := events[0].Payload["context"].(map[string]any)
	assert.Equal(t, middleware.Mask, stored["email"])
	assert.Equal(t, middleware.Mask, stored["email_verified"])
	assert.Equal(t, 42, stored["profile"].(map[string]any)["age"])
	assert.Equal(t, middleware.Mask, stored["profile"].(map[string]any)["ssn_number"])
	contact := stored["contacts"].([]any)[0].(map[string]any)
	assert.Equal(t, middleware.Mask, contact["Email"])
	assert.Equal(t, "backup", contact["kind"])
	assert.Equal(t, "activate", events[0].Payload["transition_id"])
}

func TestPIIMiddleware_NilPayload(t *testing.T) {
	underlying := memory.NewAuditLog(nil)
	audit := middleware.NewPIIMiddleware([]string{"email"})(underlying)

	require.NoError(t, audit.Record(context.Background(), domain.AuditEvent{
		OccurredAt: time.Now(), Actor: "alice", Action: domain.AuditConfigDeleted,
		ResourceType: "config", ResourceID: "onboarding",
	}))
	assert.Nil(t, underlying.Events()[0].Payload)
}
