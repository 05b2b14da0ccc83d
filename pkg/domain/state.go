package domain

import "time"

// State is a node objects can occupy inside a LifecycleConfig.
type State struct {
	ID         string `json:"id" yaml:"id"`
	ConfigID   string `json:"config_id" yaml:"config_id"`
	Name       string `json:"name" yaml:"name"`
	IsInitial  bool   `json:"is_initial" yaml:"is_initial"`
	IsTerminal bool   `json:"is_terminal" yaml:"is_terminal"`
}

// HistoryEntry records one committed transition of an object.
type HistoryEntry struct {
	ID           string          `json:"id" yaml:"id"`
	FromStateID  string          `json:"from_state_id" yaml:"from_state_id"`
	ToStateID    string          `json:"to_state_id" yaml:"to_state_id"`
	TransitionID string          `json:"transition_id" yaml:"transition_id"`
	At           time.Time       `json:"at" yaml:"at"`
	TriggeredBy  string          `json:"triggered_by" yaml:"triggered_by"`
	Outcomes     []ActionOutcome `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}

// ObjectLifecycleStatus is the runtime record of one object governed by a config.
// Version is the optimistic-concurrency token; every committed transition bumps it by one.
type ObjectLifecycleStatus struct {
	ObjectID       string         `json:"object_id" yaml:"object_id"`
	TenantID       string         `json:"tenant_id" yaml:"tenant_id"`
	ConfigID       string         `json:"config_id" yaml:"config_id"`
	CurrentStateID string         `json:"current_state_id" yaml:"current_state_id"`
	Version        int64          `json:"version" yaml:"version"`
	History        []HistoryEntry `json:"history" yaml:"history"`
	CreatedAt      time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" yaml:"updated_at"`
}

// NewStatus creates the record of an object placed under a config for the first time.
func NewStatus(tenantID, objectID, configID, initialStateID string, now time.Time) *ObjectLifecycleStatus {
	return &ObjectLifecycleStatus{
		ObjectID:       objectID,
		TenantID:       tenantID,
		ConfigID:       configID,
		CurrentStateID: initialStateID,
		Version:        1,
		History:        []HistoryEntry{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy of the status.
func (s *ObjectLifecycleStatus) Clone() *ObjectLifecycleStatus {
	if s == nil {
		return nil
	}
	out := *s
	out.History = make([]HistoryEntry, len(s.History))
	for i, e := range s.History {
		e.Outcomes = append([]ActionOutcome(nil), e.Outcomes...)
		out.History[i] = e
	}
	return &out
}

// Apply commits a transition onto the record: moves the current state, appends the
// entry and bumps the version. Stores call it after their compare-and-swap check.
func (s *ObjectLifecycleStatus) Apply(toStateID string, entry HistoryEntry) {
	s.CurrentStateID = toStateID
	s.History = append(s.History, entry)
	s.Version++
	s.UpdatedAt = entry.At
}

// AttachOutcomes appends late action outcomes to the history entry with the given id.
// It reports false when the entry does not exist.
func (s *ObjectLifecycleStatus) AttachOutcomes(entryID string, outcomes []ActionOutcome) bool {
	for i := range s.History {
		if s.History[i].ID == entryID {
			s.History[i].Outcomes = append(s.History[i].Outcomes, outcomes...)
			return true
		}
	}
	return false
}
