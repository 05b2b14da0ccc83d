package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/waypoint/internal/condition"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/google/uuid"
)

// Engine is the lifecycle orchestrator.
type Engine struct {
	configs    ports.ConfigRepository
	statuses   ports.StatusStore
	dispatcher *Dispatcher
	audit      ports.AuditLog
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	syncEntry  bool

	inflight sync.WaitGroup
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithAuditLog records every committed transition and enrollment.
func WithAuditLog(audit ports.AuditLog) EngineOption {
	return func(e *Engine) {
		e.audit = audit
	}
}

// WithActionTimeout sets the timeout of actions that carry none.
func WithActionTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.dispatcher.timeout = d
		}
	}
}

// WithSyncEntryActions runs entry actions inline, before ApplyTransition returns,
// instead of in the background.
func WithSyncEntryActions() EngineOption {
	return func(e *Engine) {
		e.syncEntry = true
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
		e.dispatcher.now = now
	}
}

// WithIDGenerator overrides the history entry id generator.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		e.newID = gen
	}
}

// NewEngine wires the orchestrator to its stores and action executor.
func NewEngine(configs ports.ConfigRepository, statuses ports.StatusStore, executor ports.ActionExecutor, opts ...EngineOption) *Engine {
	e := &Engine{
		configs:    configs,
		statuses:   statuses,
		dispatcher: NewDispatcher(executor, DefaultActionTimeout, nil),
		logger:     logging.NewNop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.dispatcher.logger = e.logger
	e.dispatcher.observe = e.observeAction
	return e
}

// GetStatus returns the status record of an object. It has no side effects.
func (e *Engine) GetStatus(ctx context.Context, objectID string) (*domain.ObjectLifecycleStatus, error) {
	status, err := e.statuses.Load(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load status of %s: %w", objectID, err)
	}
	return status, nil
}

// EnrollRequest places an object under a config for the first time.
type EnrollRequest struct {
	TenantID    string `json:"tenant_id"`
	ObjectID    string `json:"object_id"`
	ConfigID    string `json:"config_id"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// Enroll creates the status record of an object at the config's initial state.
func (e *Engine) Enroll(ctx context.Context, req EnrollRequest) (*domain.ObjectLifecycleStatus, error) {
	if err := required(map[string]string{"tenant_id": req.TenantID, "object_id": req.ObjectID, "config_id": req.ConfigID}); err != nil {
		return nil, err
	}
	def, err := e.configs.Get(ctx, req.TenantID, req.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", req.ConfigID, err)
	}
	if def.Config.Status != domain.ConfigActive {
		return nil, fmt.Errorf("%w: config %q is %s", domain.ErrConfigNotActive, def.Config.ID, def.Config.Status)
	}
	initial, ok := def.InitialState()
	if !ok {
		return nil, fmt.Errorf("%w: config %q has no initial state", domain.ErrInvalidState, def.Config.ID)
	}

	status := domain.NewStatus(req.TenantID, req.ObjectID, req.ConfigID, initial.ID, e.now().UTC())
	if err := e.statuses.Create(ctx, status); err != nil {
		return nil, fmt.Errorf("failed to enroll %s: %w", req.ObjectID, err)
	}

	e.logger.InfoContext(ctx, "object enrolled",
		"object_id", req.ObjectID,
		"config_id", req.ConfigID,
		"state", initial.ID)
	e.record(ctx, domain.AuditEvent{
		OccurredAt:   status.CreatedAt,
		TenantID:     req.TenantID,
		Actor:        actorOr(req.TriggeredBy),
		Action:       domain.AuditObjectEnrolled,
		ResourceType: "object",
		ResourceID:   req.ObjectID,
		Payload:      map[string]any{"config_id": req.ConfigID, "state_id": initial.ID},
	})
	return status, nil
}

// Evaluate dry-runs the guard of a transition against ctxData. Nothing is mutated and the
// config may be in any status.
func (e *Engine) Evaluate(ctx context.Context, tenantID, configID, transitionID string, ctxData map[string]any) (domain.Evaluation, error) {
	def, err := e.configs.Get(ctx, tenantID, configID)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("failed to load config %s: %w", configID, err)
	}
	if _, ok := def.Transition(transitionID); !ok {
		return domain.Evaluation{}, fmt.Errorf("%w: %q in config %q", domain.ErrTransitionNotFound, transitionID, configID)
	}
	return condition.EvaluateAll(def.ConditionsFor(transitionID), ctxData), nil
}

// ApplyTransition fires the named transition on an object.
//
// The exit phase runs before the commit and an abort-policy failure there leaves the
// status untouched. The commit is a compare-and-swap on the version loaded at the start;
// losing the race returns domain.ErrConcurrentModification. Once committed the change is
// final: entry actions run detached from ctx and their failures are only recorded.
func (e *Engine) ApplyTransition(ctx context.Context, req domain.ApplyRequest) (*domain.TransitionResult, error) {
	started := e.now()
	if err := required(map[string]string{"object_id": req.ObjectID, "config_id": req.ConfigID, "transition_id": req.TransitionID}); err != nil {
		return nil, err
	}

	status, err := e.statuses.Load(ctx, req.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load status of %s: %w", req.ObjectID, err)
	}
	if status.ConfigID != req.ConfigID {
		return nil, fmt.Errorf("%w: object %q is governed by config %q", domain.ErrInvalidState, req.ObjectID, status.ConfigID)
	}

	def, err := e.configs.Get(ctx, status.TenantID, req.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", req.ConfigID, err)
	}
	if def.Config.Status != domain.ConfigActive {
		return nil, fmt.Errorf("%w: config %q is %s", domain.ErrConfigNotActive, def.Config.ID, def.Config.Status)
	}

	t, err := Resolve(def, status.CurrentStateID, req.TransitionID)
	if err != nil {
		return nil, err
	}
	log := e.logger.With(
		"object_id", req.ObjectID,
		"config_id", req.ConfigID,
		"transition_id", t.ID,
		"from", t.FromStateID,
		"to", t.ToStateID)

	eval := condition.EvaluateAll(def.ConditionsFor(t.ID), req.Context)
	if !eval.AllMet {
		log.InfoContext(ctx, "transition guard failed", "unmet", len(eval.Unmet()))
		if e.hooks.OnGuardFailed != nil {
			e.hooks.OnGuardFailed(ctx, &domain.GuardEvent{
				Timestamp:    e.now(),
				TenantID:     status.TenantID,
				ObjectID:     req.ObjectID,
				ConfigID:     req.ConfigID,
				TransitionID: t.ID,
				Evaluation:   eval,
			})
		}
		return nil, &domain.TransitionGuardFailedError{TransitionID: t.ID, Evaluation: eval}
	}

	base := domain.ActionRequest{
		ObjectID:     req.ObjectID,
		TenantID:     status.TenantID,
		ConfigID:     req.ConfigID,
		TransitionID: t.ID,
		FromStateID:  t.FromStateID,
		ToStateID:    t.ToStateID,
		Context:      req.Context,
	}
	exitActions, entryActions := Plan(def, t)

	exitOutcomes, err := e.dispatcher.Run(ctx, base, exitActions, domain.OnExit)
	if err != nil {
		log.WarnContext(ctx, "transition aborted by exit action", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("transition %s abandoned before commit: %w", t.ID, err)
	}

	entry := domain.HistoryEntry{
		ID:           e.newID(),
		FromStateID:  t.FromStateID,
		ToStateID:    t.ToStateID,
		TransitionID: t.ID,
		At:           e.now().UTC(),
		TriggeredBy:  actorOr(req.TriggeredBy),
		Outcomes:     exitOutcomes,
	}
	updated, err := e.statuses.CompareAndSwap(ctx, req.ObjectID, status.Version, t.ToStateID, entry)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			log.InfoContext(ctx, "transition lost compare-and-swap", "version", status.Version)
			if e.hooks.OnConflict != nil {
				e.hooks.OnConflict(ctx, req.ObjectID)
			}
		}
		return nil, fmt.Errorf("failed to commit transition %s: %w", t.ID, err)
	}

	// Committed. Nothing below may fail the call.
	commitCtx := context.WithoutCancel(ctx)
	log.InfoContext(commitCtx, "transition applied", "version", updated.Version, "triggered_by", entry.TriggeredBy)
	e.record(commitCtx, domain.AuditEvent{
		OccurredAt:   entry.At,
		TenantID:     status.TenantID,
		Actor:        entry.TriggeredBy,
		Action:       domain.AuditTransitionApplied,
		ResourceType: "object",
		ResourceID:   req.ObjectID,
		Payload: map[string]any{
			"config_id":     req.ConfigID,
			"transition_id": t.ID,
			"from_state_id": t.FromStateID,
			"to_state_id":   t.ToStateID,
			"version":       updated.Version,
			"context":       req.Context,
		},
	})
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(commitCtx, &domain.TransitionEvent{
			Timestamp: entry.At,
			TenantID:  status.TenantID,
			ObjectID:  req.ObjectID,
			ConfigID:  req.ConfigID,
			Entry:     entry,
			Duration:  e.now().Sub(started),
		})
	}

	newState, _ := def.State(t.ToStateID)
	result := &domain.TransitionResult{NewState: newState, Entry: entry, Status: updated}

	if len(entryActions) == 0 {
		return result, nil
	}
	if e.syncEntry {
		outcomes := e.runEntry(commitCtx, base, entry.ID, entryActions, log)
		result.Entry.Outcomes = append(result.Entry.Outcomes, outcomes...)
		updated.AttachOutcomes(entry.ID, outcomes)
		return result, nil
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		e.runEntry(commitCtx, base, entry.ID, entryActions, log)
	}()
	return result, nil
}

// Wait blocks until background entry-action dispatches have finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) runEntry(ctx context.Context, base domain.ActionRequest, entryID string, actions []domain.StateAction, log *slog.Logger) []domain.ActionOutcome {
	outcomes, err := e.dispatcher.Run(ctx, base, actions, domain.OnEnter)
	if err != nil {
		log.WarnContext(ctx, "entry action failed after committed transition", "error", err)
	}
	if len(outcomes) == 0 {
		return nil
	}
	if err := e.statuses.RecordOutcomes(ctx, base.ObjectID, entryID, outcomes); err != nil {
		log.ErrorContext(ctx, "failed to record entry action outcomes", "entry_id", entryID, "error", err)
	}
	return outcomes
}

func (e *Engine) observeAction(ctx context.Context, req domain.ActionRequest, outcome domain.ActionOutcome) {
	if e.hooks.OnActionDispatched == nil {
		return
	}
	e.hooks.OnActionDispatched(ctx, &domain.ActionEvent{
		TenantID:     req.TenantID,
		ObjectID:     req.ObjectID,
		ConfigID:     req.ConfigID,
		TransitionID: req.TransitionID,
		Outcome:      outcome,
	})
}

func (e *Engine) record(ctx context.Context, event domain.AuditEvent) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "failed to write audit event", "action", event.Action, "resource_id", event.ResourceID, "error", err)
	}
}

func actorOr(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return domain.SystemActor
	}
	return actor
}

func required(fields map[string]string) error {
	var violations []domain.Violation
	for _, name := range []string{"tenant_id", "object_id", "config_id", "transition_id"} {
		value, asked := fields[name]
		if asked && strings.TrimSpace(value) == "" {
			violations = append(violations, domain.Violation{
				Code:    domain.CodeMissingField,
				Path:    name,
				Message: name + " is required",
			})
		}
	}
	if len(violations) > 0 {
		return &domain.ValidationError{Violations: violations}
	}
	return nil
}
