package domain

import (
	"context"
	"time"
)

// TransitionEvent is emitted after a transition commits.
type TransitionEvent struct {
	Timestamp time.Time
	TenantID  string
	ObjectID  string
	ConfigID  string
	Entry     HistoryEntry
	Duration  time.Duration
}

// GuardEvent is emitted when a transition is blocked by its conditions.
type GuardEvent struct {
	Timestamp    time.Time
	TenantID     string
	ObjectID     string
	ConfigID     string
	TransitionID string
	Evaluation   Evaluation
}

// ActionEvent is emitted for every action the dispatcher runs.
type ActionEvent struct {
	TenantID     string
	ObjectID     string
	ConfigID     string
	TransitionID string
	Outcome      ActionOutcome
}

// LifecycleHooks defines callbacks for engine observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnTransition       func(context.Context, *TransitionEvent)
	OnGuardFailed      func(context.Context, *GuardEvent)
	OnActionDispatched func(context.Context, *ActionEvent)
	OnConflict         func(context.Context, string)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTransition: func(ctx context.Context, e *TransitionEvent) {
			if h.OnTransition != nil {
				h.OnTransition(ctx, e)
			}
			if other.OnTransition != nil {
				other.OnTransition(ctx, e)
			}
		},
		OnGuardFailed: func(ctx context.Context, e *GuardEvent) {
			if h.OnGuardFailed != nil {
				h.OnGuardFailed(ctx, e)
			}
			if other.OnGuardFailed != nil {
				other.OnGuardFailed(ctx, e)
			}
		},
		OnActionDispatched: func(ctx context.Context, e *ActionEvent) {
			if h.OnActionDispatched != nil {
				h.OnActionDispatched(ctx, e)
			}
			if other.OnActionDispatched != nil {
				other.OnActionDispatched(ctx, e)
			}
		},
		OnConflict: func(ctx context.Context, objectID string) {
			if h.OnConflict != nil {
				h.OnConflict(ctx, objectID)
			}
			if other.OnConflict != nil {
				other.OnConflict(ctx, objectID)
			}
		},
	}
}
