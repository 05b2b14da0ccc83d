package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/waypoint/pkg/domain"
)

// LoggingHooks logs every lifecycle event at debug level, failures at warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition",
				"object_id", e.ObjectID,
				"config_id", e.ConfigID,
				"transition_id", e.Entry.TransitionID,
				"duration", e.Duration)
		},
		OnGuardFailed: func(ctx context.Context, e *domain.GuardEvent) {
			unmet := make([]string, 0)
			for _, r := range e.Evaluation.Unmet() {
				unmet = append(unmet, r.ConditionID)
			}
			logger.DebugContext(ctx, "guard failed",
				"object_id", e.ObjectID,
				"transition_id", e.TransitionID,
				"unmet", unmet)
		},
		OnActionDispatched: func(ctx context.Context, e *domain.ActionEvent) {
			if e.Outcome.Success {
				logger.DebugContext(ctx, "action dispatched",
					"object_id", e.ObjectID,
					"action_id", e.Outcome.ActionID,
					"phase", e.Outcome.Phase)
				return
			}
			logger.WarnContext(ctx, "action failed",
				"object_id", e.ObjectID,
				"action_id", e.Outcome.ActionID,
				"phase", e.Outcome.Phase,
				"aborted", e.Outcome.Aborted,
				"error", e.Outcome.Error)
		},
		OnConflict: func(ctx context.Context, objectID string) {
			logger.DebugContext(ctx, "concurrent modification", "object_id", objectID)
		},
	}
}
