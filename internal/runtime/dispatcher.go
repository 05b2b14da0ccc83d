package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// DefaultActionTimeout bounds actions that do not carry their own timeout.
const DefaultActionTimeout = 10 * time.Second

// Dispatcher sequences state actions and decides whether a failure blocks the commit.
// Execution itself is delegated to a ports.ActionExecutor.
type Dispatcher struct {
	executor ports.ActionExecutor
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
	observe  func(context.Context, domain.ActionRequest, domain.ActionOutcome)
}

// NewDispatcher creates a dispatcher. A nil executor fails every action.
func NewDispatcher(executor ports.ActionExecutor, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if executor == nil {
		executor = ports.ActionExecutorFunc(func(context.Context, domain.ActionRequest) error {
			return errors.New("no action executor configured")
		})
	}
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		executor: executor,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Plan returns the exit actions of the source state and the entry actions of the target
// state, each sorted by Order.
func Plan(def *domain.Definition, t domain.Transition) (exit, entry []domain.StateAction) {
	exit = domain.FilterActions(def.ActionsFor(t.FromStateID), domain.OnExit)
	entry = domain.FilterActions(def.ActionsFor(t.ToStateID), domain.OnEnter)
	return exit, entry
}

// Run executes actions in order for one phase. A failure under the continue policy is
// recorded and the phase goes on. On exit, a failure under the abort policy stops the
// phase and is returned as *domain.ActionDispatchFailedError, aborting the transition.
// On entry the transition is already committed, so every action runs and the first
// abort-policy failure is returned once the phase is over.
func (d *Dispatcher) Run(ctx context.Context, base domain.ActionRequest, actions []domain.StateAction, phase domain.Trigger) ([]domain.ActionOutcome, error) {
	outcomes := make([]domain.ActionOutcome, 0, len(actions))
	var failed error
	for _, action := range actions {
		req := base
		req.Action = action
		req.Phase = phase

		outcome, err := d.execute(ctx, req)
		if err == nil || action.FailurePolicy != domain.PolicyAbort {
			outcomes = append(outcomes, outcome)
			continue
		}

		aborted := phase == domain.OnExit
		outcome.Aborted = aborted
		outcomes = append(outcomes, outcome)
		dispatchErr := &domain.ActionDispatchFailedError{
			ActionID:   action.ID,
			ActionType: action.Type,
			Phase:      phase,
			Aborted:    aborted,
			Err:        err,
		}
		if aborted {
			return outcomes, dispatchErr
		}
		if failed == nil {
			failed = dispatchErr
		}
	}
	return outcomes, failed
}

func (d *Dispatcher) execute(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
	timeout := req.Action.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := d.now()
	done := make(chan error, 1)
	go func() {
		done <- d.executor.Execute(ctx, req)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("timed out after %s: %w", timeout, ctx.Err())
	}

	outcome := domain.ActionOutcome{
		ActionID: req.Action.ID,
		Type:     req.Action.Type,
		Phase:    req.Phase,
		Success:  err == nil,
		Duration: d.now().Sub(started),
		At:       started,
	}
	if err != nil {
		outcome.Error = err.Error()
		d.logger.WarnContext(ctx, "action failed",
			"action_id", req.Action.ID,
			"action_type", req.Action.Type,
			"phase", req.Phase,
			"failure_policy", req.Action.FailurePolicy,
			"object_id", req.ObjectID,
			"error", err)
	} else {
		d.logger.DebugContext(ctx, "action dispatched",
			"action_id", req.Action.ID,
			"phase", req.Phase,
			"object_id", req.ObjectID)
	}
	if d.observe != nil {
		d.observe(ctx, req, outcome)
	}
	return outcome, err
}
