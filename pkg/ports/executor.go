package ports

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
)

// ActionExecutor performs the side effect described by a state action.
// Implementations own their retries; the dispatcher only observes the final error
// and bounds the call with the action timeout carried by ctx.
type ActionExecutor interface {
	Execute(ctx context.Context, req domain.ActionRequest) error
}

// ActionExecutorFunc adapts a plain function to ActionExecutor.
type ActionExecutorFunc func(ctx context.Context, req domain.ActionRequest) error

func (f ActionExecutorFunc) Execute(ctx context.Context, req domain.ActionRequest) error {
	return f(ctx, req)
}

// AuditLog records config mutations and committed transitions.
type AuditLog interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}
