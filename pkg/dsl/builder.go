package dsl

import (
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/waypoint/internal/validator"
	"github.com/aretw0/waypoint/pkg/domain"
)

// Builder manages the definition construction.
type Builder struct {
	config      domain.LifecycleConfig
	states      []*StateBuilder
	transitions []*TransitionBuilder
	errs        []error
}

// New creates a new definition builder. The config starts as a draft.
func New(tenantID, configID, objectType string) *Builder {
	return &Builder{
		config: domain.LifecycleConfig{
			ID:         configID,
			TenantID:   tenantID,
			ObjectType: objectType,
			Name:       configID,
			Status:     domain.ConfigDraft,
		},
	}
}

// Name sets the human readable config name.
func (b *Builder) Name(name string) *Builder {
	b.config.Name = name
	return b
}

// Active marks the config as active.
func (b *Builder) Active() *Builder {
	b.config.Status = domain.ConfigActive
	return b
}

// Status sets an explicit config status.
func (b *Builder) Status(s domain.ConfigStatus) *Builder {
	b.config.Status = s
	return b
}

// State creates a state, or returns the existing builder for that id.
func (b *Builder) State(id string) *StateBuilder {
	for _, sb := range b.states {
		if sb.state.ID == id {
			return sb
		}
	}
	sb := &StateBuilder{
		state:   domain.State{ID: id, ConfigID: b.config.ID, Name: id},
		builder: b,
	}
	b.states = append(b.states, sb)
	return sb
}

// Transition creates a transition, or returns the existing builder for that id.
func (b *Builder) Transition(id, from, to string) *TransitionBuilder {
	for _, tb := range b.transitions {
		if tb.transition.ID == id {
			return tb
		}
	}
	tb := &TransitionBuilder{
		transition: domain.Transition{ID: id, ConfigID: b.config.ID, Name: id, FromStateID: from, ToStateID: to},
		builder:    b,
	}
	b.transitions = append(b.transitions, tb)
	return tb
}

// Definition assembles the definition without validating it.
func (b *Builder) Definition() *domain.Definition {
	def := &domain.Definition{
		Config:     b.config,
		Conditions: map[string][]domain.Condition{},
		Actions:    map[string][]domain.StateAction{},
	}
	for _, sb := range b.states {
		def.States = append(def.States, sb.state)
		if len(sb.actions) > 0 {
			for _, ab := range sb.actions {
				def.Actions[sb.state.ID] = append(def.Actions[sb.state.ID], ab.action)
			}
		}
	}
	for _, tb := range b.transitions {
		def.Transitions = append(def.Transitions, tb.transition)
		if len(tb.conditions) > 0 {
			def.Conditions[tb.transition.ID] = append([]domain.Condition(nil), tb.conditions...)
		}
	}
	return def
}

// Build assembles and validates the definition.
func (b *Builder) Build() (*domain.Definition, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("failed to build definition %s: %w", b.config.ID, errors.Join(b.errs...))
	}
	def := b.Definition()
	if _, err := validator.Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

// MustBuild is Build for definitions known to be valid; it panics otherwise.
func (b *Builder) MustBuild() *domain.Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	state   domain.State
	actions []*ActionBuilder
	builder *Builder
}

// Name sets the display name.
func (s *StateBuilder) Name(name string) *StateBuilder {
	s.state.Name = name
	return s
}

// Initial marks the state as the config's initial state.
func (s *StateBuilder) Initial() *StateBuilder {
	s.state.IsInitial = true
	return s
}

// Terminal marks the state as terminal (no outgoing transitions).
func (s *StateBuilder) Terminal() *StateBuilder {
	s.state.IsTerminal = true
	return s
}

// OnEnter adds an action fired when an object enters the state.
func (s *StateBuilder) OnEnter(actionID string) *ActionBuilder {
	return s.action(actionID, domain.OnEnter)
}

// OnExit adds an action fired when an object leaves the state.
func (s *StateBuilder) OnExit(actionID string) *ActionBuilder {
	return s.action(actionID, domain.OnExit)
}

func (s *StateBuilder) action(id string, trigger domain.Trigger) *ActionBuilder {
	order := 0
	for _, ab := range s.actions {
		if ab.action.Trigger == trigger {
			order++
		}
	}
	ab := &ActionBuilder{
		action: domain.StateAction{
			ID:            id,
			StateID:       s.state.ID,
			Trigger:       trigger,
			Order:         order,
			FailurePolicy: domain.PolicyContinue,
		},
		state: s,
	}
	s.actions = append(s.actions, ab)
	return ab
}

// ActionBuilder configures one state action. Actions default to the continue policy and
// to an order matching their declaration order within the trigger.
type ActionBuilder struct {
	action domain.StateAction
	state  *StateBuilder
}

// Webhook makes the action a webhook POST to url.
func (a *ActionBuilder) Webhook(url string) *ActionBuilder {
	a.action.Type = domain.ActionWebhook
	a.action.Webhook = &domain.WebhookConfig{URL: url, Method: "POST"}
	a.action.Raw = nil
	return a
}

// Header adds a header to a webhook action.
func (a *ActionBuilder) Header(key, value string) *ActionBuilder {
	if a.action.Webhook == nil {
		a.state.builder.errs = append(a.state.builder.errs, fmt.Errorf("action %s: Header requires Webhook", a.action.ID))
		return a
	}
	if a.action.Webhook.Headers == nil {
		a.action.Webhook.Headers = make(map[string]string)
	}
	a.action.Webhook.Headers[key] = value
	return a
}

// Custom makes the action an arbitrary type with an opaque config.
func (a *ActionBuilder) Custom(actionType string, config map[string]any) *ActionBuilder {
	a.action.Type = domain.ActionType(actionType)
	if err := a.action.SetConfig(config); err != nil {
		a.state.builder.errs = append(a.state.builder.errs, err)
	}
	return a
}

// Abort makes a failure of this action roll back the transition.
func (a *ActionBuilder) Abort() *ActionBuilder {
	a.action.FailurePolicy = domain.PolicyAbort
	return a
}

// Continue records failures of this action without blocking the transition.
func (a *ActionBuilder) Continue() *ActionBuilder {
	a.action.FailurePolicy = domain.PolicyContinue
	return a
}

// Timeout bounds the action execution.
func (a *ActionBuilder) Timeout(d time.Duration) *ActionBuilder {
	a.action.Timeout = d
	return a
}

// Order overrides the stored order.
func (a *ActionBuilder) Order(n int) *ActionBuilder {
	a.action.Order = n
	return a
}

// Build returns the underlying domain.StateAction.
func (a *ActionBuilder) Build() domain.StateAction {
	return a.action
}

// TransitionBuilder provides a fluent API for configuring a transition and its guard.
type TransitionBuilder struct {
	transition domain.Transition
	conditions []domain.Condition
	builder    *Builder
}

// Name sets the display name.
func (t *TransitionBuilder) Name(name string) *TransitionBuilder {
	t.transition.Name = name
	return t
}

// RequiresApproval flags the transition as needing an approver.
func (t *TransitionBuilder) RequiresApproval() *TransitionBuilder {
	t.transition.RequiresApproval = true
	return t
}

// When adds a guard condition with a generated id ("<transition>-<n>").
func (t *TransitionBuilder) When(attribute string, op domain.Operator, value any) *TransitionBuilder {
	id := fmt.Sprintf("%s-%d", t.transition.ID, len(t.conditions)+1)
	return t.WhenID(id, attribute, op, value)
}

// WhenID adds a guard condition with an explicit id.
func (t *TransitionBuilder) WhenID(id, attribute string, op domain.Operator, value any) *TransitionBuilder {
	v, err := domain.ValueOf(value)
	if err != nil {
		t.builder.errs = append(t.builder.errs, fmt.Errorf("condition %s: %w", id, err))
		return t
	}
	t.conditions = append(t.conditions, domain.Condition{
		ID:           id,
		TransitionID: t.transition.ID,
		Attribute:    attribute,
		Operator:     op,
		Value:        v,
	})
	return t
}

// Build returns the underlying domain.Transition.
func (t *TransitionBuilder) Build() domain.Transition {
	return t.transition
}
