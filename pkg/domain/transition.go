package domain

// Transition is a directed, explicitly identified edge between two states of a config.
// Callers always name the transition by ID; the engine never infers one.
type Transition struct {
	ID               string `json:"id" yaml:"id"`
	ConfigID         string `json:"config_id" yaml:"config_id"`
	Name             string `json:"name" yaml:"name"`
	FromStateID      string `json:"from_state_id" yaml:"from_state_id"`
	ToStateID        string `json:"to_state_id" yaml:"to_state_id"`
	RequiresApproval bool   `json:"requires_approval" yaml:"requires_approval"`
}

// TransitionResult is returned by a successful ApplyTransition.
type TransitionResult struct {
	NewState State                  `json:"new_state"`
	Entry    HistoryEntry           `json:"history_entry"`
	Status   *ObjectLifecycleStatus `json:"status"`
}

// ApplyRequest names the transition a caller wants to fire on an object.
type ApplyRequest struct {
	ObjectID     string         `json:"object_id"`
	ConfigID     string         `json:"config_id"`
	TransitionID string         `json:"transition_id"`
	Context      map[string]any `json:"context,omitempty"`
	TriggeredBy  string         `json:"triggered_by,omitempty"`
}
