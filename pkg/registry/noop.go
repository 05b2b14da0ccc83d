package registry

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Noop returns an executor that succeeds without side effects, calling observe if set.
// It stands in for action types a deployment does not deliver yet.
func Noop(observe func()) ports.ActionExecutor {
	return ports.ActionExecutorFunc(func(ctx context.Context, req domain.ActionRequest) error {
		if observe != nil {
			observe()
		}
		return nil
	})
}
