package admin

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/waypoint/pkg/domain"
)

// AddState appends a state to a config.
func (s *Service) AddState(ctx context.Context, caller Caller, configID string, st domain.State) (*domain.Definition, error) {
	st.ConfigID = configID
	return s.mutate(ctx, caller, configID, mutation{
		action: domain.AuditStateSaved, resourceType: "state", resourceID: st.ID,
		payload: map[string]any{"name": st.Name, "is_initial": st.IsInitial, "is_terminal": st.IsTerminal},
	}, func(def *domain.Definition) error {
		if st.ID == "" {
			return missing("id")
		}
		if _, ok := def.State(st.ID); ok {
			return fmt.Errorf("state %s: %w", st.ID, domain.ErrAlreadyExists)
		}
		def.States = append(def.States, st)
		return nil
	})
}

// UpdateState replaces the attributes of an existing state.
func (s *Service) UpdateState(ctx context.Context, caller Caller, configID, stateID string, st domain.State) (*domain.Definition, error) {
	st.ID = stateID
	st.ConfigID = configID
	return s.mutate(ctx, caller, configID, mutation{
		action: domain.AuditStateSaved, resourceType: "state", resourceID: stateID,
		payload: map[string]any{"name": st.Name, "is_initial": st.IsInitial, "is_terminal": st.IsTerminal},
	}, func(def *domain.Definition) error {
		i := slices.IndexFunc(def.States, func(x domain.State) bool { return x.ID == stateID })
		if i < 0 {
			return fmt.Errorf("state %s: %w", stateID, domain.ErrNotFound)
		}
		def.States[i] = st
		return nil
	})
}

// DeleteState removes a state and its actions. Transitions still pointing at it make
// the save fail validation.
func (s *Service) DeleteState(ctx context.Context, caller Caller, configID, stateID string) (*domain.Definition, error) {
	return s.mutate(ctx, caller, configID, mutation{
		action: domain.AuditStateDeleted, resourceType: "state", resourceID: stateID,
	}, func(def *domain.Definition) error {
		i := slices.IndexFunc(def.States, func(x domain.State) bool { return x.ID == stateID })
		if i < 0 {
			return fmt.Errorf("state %s: %w", stateID, domain.ErrNotFound)
		}
		def.States = slices.Delete(def.States, i, i+1)
		delete(def.Actions, stateID)
		return nil
	})
}

// AddTransition appends a transition to a config.
func (s *Service) AddTransition(ctx context.Context, caller Caller, configID string, t domain.Transition) (*domain.Definition, error) {
	t.ConfigID = configID
	return s.mutate(ctx, caller, configID, mutation{
		action: domain.AuditTransitionSaved, resourceType: "transition", resourceID: t.ID,
		payload: map[string]any{"from_state_id": t.FromStateID, "to_state_id": t.ToStateID},
	}, func(def *domain.Definition) error {
		if t.ID == "" {
			return missing("id")
		}
		if _, ok := def.Transition(t.ID); ok {
			return fmt.Errorf("transition %s: %w", t.ID, domain.ErrAlreadyExists)
		}
		def.Transitions = append(def.Transitions, t)
		return nil
	})
}

// DeleteTransition removes a transition and its conditions.
func (s *Service) DeleteTransition(ctx context.Context, caller Caller, configID, transitionID string) (*domain.Definition, error) {
	return s.mutate(ctx, caller, configID, mutation{
		action: domain.AuditTransitionDeleted, resourceType: "transition", resourceID: transitionID,
	}, func(def *domain.Definition) error {
		i := slices.IndexFunc(def.Transitions, func(x domain.Transition) bool { return x.ID == transitionID })
		if i < 0 {
			return fmt.Errorf("transition %s: %w", transitionID, domain.ErrNotFound)
		}
		def.Transitions = slices.Delete(def.Transitions, i, i+1)
		delete(def.Conditions, transitionID)
		return nil
	})
}

// GetConditions returns the guard of a transition.
func (s *Service) GetConditions(ctx context.Context, caller Caller, configID, transitionID string) ([]domain.Condition, error) {
	def, err := s.configs.Get(ctx, caller.TenantID, configID)
	if err != nil {
		return nil, err
	}
	if _, ok := def.Transition(transitionID); !ok {
		return nil, fmt.Errorf("transition %s: %w", transitionID, domain.ErrNotFound)
	}
	return def.ConditionsFor(transitionID), nil
}

// ReplaceConditions swaps the whole guard of a transition. Conditions without an id get
// "<transition>-<n>".
func (s *Service) ReplaceConditions(ctx context.Context, caller Caller, configID, transitionID string, conditions []domain.Condition) ([]domain.Condition, error) {
	out := make([]domain.Condition, len(conditions))
	for i, c := range conditions {
		c.TransitionID = transitionID
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s-%d", transitionID, i+1)
		}
		out[i] = c
	}
	_, err := s.mutate(ctx, caller, configID, mutation{
		action: domain.AuditConditionsReplaced, resourceType: "transition", resourceID: transitionID,
		payload: map[string]any{"count": len(out)},
	}, func(def *domain.Definition) error {
		if _, ok := def.Transition(transitionID); !ok {
			return fmt.Errorf("transition %s: %w", transitionID, domain.ErrNotFound)
		}
		if def.Conditions == nil {
			def.Conditions = map[string][]domain.Condition{}
		}
		if len(out) == 0 {
			delete(def.Conditions, transitionID)
		} else {
			def.Conditions[transitionID] = out
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetActions returns the actions of a state ordered by trigger then order.
func (s *Service) GetActions(ctx context.Context, caller Caller, configID, stateID string) ([]domain.StateAction, error) {
	def, err := s.configs.Get(ctx, caller.TenantID, configID)
	if err != nil {
		return nil, err
	}
	if _, ok := def.State(stateID); !ok {
		return nil, fmt.Errorf("state %s: %w", stateID, domain.ErrNotFound)
	}
	actions := def.ActionsFor(stateID)
	return append(domain.FilterActions(actions, domain.OnExit), domain.FilterActions(actions, domain.OnEnter)...), nil
}

// ReplaceActions swaps every action of a state.
func (s *Service) ReplaceActions(ctx context.Context, caller Caller, configID, stateID string, actions []domain.StateAction) ([]domain.StateAction, error) {
	out := make([]domain.StateAction, len(actions))
	for i, a := range actions {
		a.StateID = stateID
		if a.FailurePolicy == "" {
			a.FailurePolicy = domain.PolicyContinue
		}
		out[i] = a
	}
	_, err := s.mutate(ctx, caller, configID, mutation{
		action: domain.AuditActionsReplaced, resourceType: "state", resourceID: stateID,
		payload: map[string]any{"count": len(out)},
	}, func(def *domain.Definition) error {
		if _, ok := def.State(stateID); !ok {
			return fmt.Errorf("state %s: %w", stateID, domain.ErrNotFound)
		}
		if def.Actions == nil {
			def.Actions = map[string][]domain.StateAction{}
		}
		if len(out) == 0 {
			delete(def.Actions, stateID)
		} else {
			def.Actions[stateID] = out
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return domain.SortActions(out), nil
}
