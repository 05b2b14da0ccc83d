package domain

import "time"

// ConfigStatus is the activation status of a LifecycleConfig.
type ConfigStatus string

const (
	ConfigDraft    ConfigStatus = "draft"    // Editable, does not process transitions
	ConfigActive   ConfigStatus = "active"   // Validated, processes transitions
	ConfigDisabled ConfigStatus = "disabled" // Stops intake, history is kept
)

// Valid reports whether s is a known status.
func (s ConfigStatus) Valid() bool {
	switch s {
	case ConfigDraft, ConfigActive, ConfigDisabled:
		return true
	}
	return false
}

// LifecycleConfig is a tenant-scoped finite-state-machine definition for one object type.
type LifecycleConfig struct {
	ID         string       `json:"id" yaml:"id"`
	TenantID   string       `json:"tenant_id" yaml:"tenant_id"`
	ObjectType string       `json:"object_type" yaml:"object_type"`
	Name       string       `json:"name" yaml:"name"`
	Status     ConfigStatus `json:"status" yaml:"status"`
	CreatedAt  time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" yaml:"updated_at"`
}

// Definition is the aggregate owned by a LifecycleConfig: its states, transitions,
// guard conditions (keyed by transition id) and state actions (keyed by state id).
// It is the unit persisted by a ConfigRepository and checked by the validator.
type Definition struct {
	Config      LifecycleConfig          `json:"config" yaml:"config"`
	States      []State                  `json:"states" yaml:"states"`
	Transitions []Transition             `json:"transitions" yaml:"transitions"`
	Conditions  map[string][]Condition   `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions     map[string][]StateAction `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// State returns the state with the given id.
func (d *Definition) State(id string) (State, bool) {
	for _, s := range d.States {
		if s.ID == id {
			return s, true
		}
	}
	return State{}, false
}

// InitialState returns the first state flagged as initial.
func (d *Definition) InitialState() (State, bool) {
	for _, s := range d.States {
		if s.IsInitial {
			return s, true
		}
	}
	return State{}, false
}

// Transition returns the transition with the given id.
func (d *Definition) Transition(id string) (Transition, bool) {
	for _, t := range d.Transitions {
		if t.ID == id {
			return t, true
		}
	}
	return Transition{}, false
}

// ConditionsFor returns the guard conditions of a transition.
func (d *Definition) ConditionsFor(transitionID string) []Condition {
	if d.Conditions == nil {
		return nil
	}
	return d.Conditions[transitionID]
}

// ActionsFor returns the actions attached to a state (all triggers).
func (d *Definition) ActionsFor(stateID string) []StateAction {
	if d.Actions == nil {
		return nil
	}
	return d.Actions[stateID]
}

// Clone returns a deep copy so callers can mutate the aggregate without touching cached values.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	out := &Definition{
		Config:      d.Config,
		States:      append([]State(nil), d.States...),
		Transitions: append([]Transition(nil), d.Transitions...),
	}
	if d.Conditions != nil {
		out.Conditions = make(map[string][]Condition, len(d.Conditions))
		for k, v := range d.Conditions {
			out.Conditions[k] = append([]Condition(nil), v...)
		}
	}
	if d.Actions != nil {
		out.Actions = make(map[string][]StateAction, len(d.Actions))
		for k, v := range d.Actions {
			out.Actions[k] = append([]StateAction(nil), v...)
		}
	}
	return out
}
