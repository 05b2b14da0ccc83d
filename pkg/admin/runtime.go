package admin

import (
	"context"
	"fmt"

	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/pkg/domain"
)

// Evaluate dry-runs a transition guard.
func (s *Service) Evaluate(ctx context.Context, caller Caller, configID, transitionID string, data map[string]any) (domain.Evaluation, error) {
	return s.engine.Evaluate(ctx, caller.TenantID, configID, transitionID, data)
}

// Enroll places an object under a config of the caller's tenant.
func (s *Service) Enroll(ctx context.Context, caller Caller, objectID, configID string) (*domain.ObjectLifecycleStatus, error) {
	return s.engine.Enroll(ctx, runtime.EnrollRequest{
		TenantID:    caller.TenantID,
		ObjectID:    objectID,
		ConfigID:    configID,
		TriggeredBy: caller.Actor,
	})
}

// GetStatus returns the status of an object owned by the caller's tenant.
// Objects of other tenants are reported as not found.
func (s *Service) GetStatus(ctx context.Context, caller Caller, objectID string) (*domain.ObjectLifecycleStatus, error) {
	status, err := s.engine.GetStatus(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if status.TenantID != caller.TenantID {
		return nil, fmt.Errorf("status of %s: %w", objectID, domain.ErrNotFound)
	}
	return status, nil
}

// ApplyTransition fires a transition on an object owned by the caller's tenant.
func (s *Service) ApplyTransition(ctx context.Context, caller Caller, req domain.ApplyRequest) (*domain.TransitionResult, error) {
	if _, err := s.GetStatus(ctx, caller, req.ObjectID); err != nil {
		return nil, err
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = caller.Actor
	}
	return s.engine.ApplyTransition(ctx, req)
}
