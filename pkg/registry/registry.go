package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// ErrNoExecutor is returned for actions whose type has no registered executor.
var ErrNoExecutor = errors.New("no executor registered for action type")

// Registry routes actions to executors by action type.
// It implements ports.ActionExecutor.
type Registry struct {
	mu        sync.RWMutex
	executors map[domain.ActionType]ports.ActionExecutor
	fallback  ports.ActionExecutor
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[domain.ActionType]ports.ActionExecutor),
	}
}

// Register binds an executor to an action type.
// If the type is already bound, it is overwritten.
func (r *Registry) Register(actionType domain.ActionType, exec ports.ActionExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[actionType] = exec
}

// RegisterFunc binds a plain function to an action type.
func (r *Registry) RegisterFunc(actionType domain.ActionType, fn func(ctx context.Context, req domain.ActionRequest) error) {
	r.Register(actionType, ports.ActionExecutorFunc(fn))
}

// Fallback sets the executor for types nobody registered.
func (r *Registry) Fallback(exec ports.ActionExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = exec
}

// Has reports whether an executor is bound to actionType.
func (r *Registry) Has(actionType domain.ActionType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[actionType]
	return ok
}

// Types lists the registered action types, sorted.
func (r *Registry) Types() []domain.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ActionType, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Execute looks up the executor for req.Action.Type and runs it.
func (r *Registry) Execute(ctx context.Context, req domain.ActionRequest) error {
	r.mu.RLock()
	exec, ok := r.executors[req.Action.Type]
	if !ok {
		exec = r.fallback
	}
	r.mu.RUnlock()

	if exec == nil {
		return fmt.Errorf("%w: %q (action %s)", ErrNoExecutor, req.Action.Type, req.Action.ID)
	}
	return exec.Execute(ctx, req)
}
