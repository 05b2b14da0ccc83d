package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Trigger selects when a StateAction fires relative to its state.
type Trigger string

const (
	OnEnter Trigger = "on_enter"
	OnExit  Trigger = "on_exit"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool { return t == OnEnter || t == OnExit }

// FailurePolicy decides whether a failed action blocks the transition.
// It is chosen when the action is configured, never per call.
type FailurePolicy string

const (
	// PolicyAbort rolls back the whole transition when the action fails before the commit.
	PolicyAbort FailurePolicy = "abort"
	// PolicyContinue records the failure and lets the transition proceed.
	PolicyContinue FailurePolicy = "continue"
)

// Valid reports whether p is a known policy.
func (p FailurePolicy) Valid() bool { return p == PolicyAbort || p == PolicyContinue }

// ActionType tags the variant of a StateAction. The set is open: unknown types keep
// their payload in StateAction.Raw and are routed to whatever executor is registered.
type ActionType string

const (
	ActionWebhook ActionType = "webhook"
)

// WebhookConfig is the typed configuration of a webhook action.
type WebhookConfig struct {
	URL     string            `json:"url" yaml:"url" mapstructure:"url"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty" mapstructure:"method"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" mapstructure:"headers"`
	Secret  string            `json:"secret,omitempty" yaml:"secret,omitempty" mapstructure:"secret"`
	Payload map[string]any    `json:"payload,omitempty" yaml:"payload,omitempty" mapstructure:"payload"`
}

// StateAction is a side-effecting hook fired on entering or exiting a state.
// Exactly one of Webhook (for ActionWebhook) or Raw (any other type) carries the config.
type StateAction struct {
	ID            string
	StateID       string
	Type          ActionType
	Trigger       Trigger
	Order         int
	FailurePolicy FailurePolicy
	Timeout       time.Duration

	Webhook *WebhookConfig
	Raw     json.RawMessage
}

// actionWire is the serialized form of StateAction.
type actionWire struct {
	ID            string          `json:"id"`
	StateID       string          `json:"state_id"`
	Type          ActionType      `json:"action_type"`
	Trigger       Trigger         `json:"trigger"`
	Order         int             `json:"order"`
	FailurePolicy FailurePolicy   `json:"failure_policy"`
	Timeout       string          `json:"timeout,omitempty"`
	Config        json.RawMessage `json:"config,omitempty"`
}

// MarshalJSON flattens the typed config back into the opaque "config" field.
func (a StateAction) MarshalJSON() ([]byte, error) {
	w := actionWire{
		ID:            a.ID,
		StateID:       a.StateID,
		Type:          a.Type,
		Trigger:       a.Trigger,
		Order:         a.Order,
		FailurePolicy: a.FailurePolicy,
	}
	if a.Timeout > 0 {
		w.Timeout = a.Timeout.String()
	}
	switch {
	case a.Webhook != nil:
		cfg, err := json.Marshal(a.Webhook)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal webhook config: %w", err)
		}
		w.Config = cfg
	case len(a.Raw) > 0:
		w.Config = a.Raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the opaque "config" field into the variant matching action_type.
func (a *StateAction) UnmarshalJSON(data []byte) error {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := StateAction{
		ID:            w.ID,
		StateID:       w.StateID,
		Type:          w.Type,
		Trigger:       w.Trigger,
		Order:         w.Order,
		FailurePolicy: w.FailurePolicy,
	}
	if w.Timeout != "" {
		d, err := time.ParseDuration(w.Timeout)
		if err != nil {
			return fmt.Errorf("action %s: invalid timeout: %w", w.ID, err)
		}
		out.Timeout = d
	}
	if len(w.Config) > 0 && string(w.Config) != "null" {
		var raw map[string]any
		if err := json.Unmarshal(w.Config, &raw); err != nil {
			return fmt.Errorf("action %s: config must be an object: %w", w.ID, err)
		}
		if err := out.SetConfig(raw); err != nil {
			return err
		}
	}
	*a = out
	return nil
}

// MarshalYAML renders the action through its JSON wire form.
func (a StateAction) MarshalYAML() (any, error) {
	data, err := a.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetConfig decodes an opaque payload into the typed variant for known action types,
// or keeps it as raw JSON for types the engine does not understand.
func (a *StateAction) SetConfig(raw map[string]any) error {
	a.Webhook = nil
	a.Raw = nil
	if raw == nil {
		return nil
	}
	switch a.Type {
	case ActionWebhook:
		var cfg WebhookConfig
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "mapstructure",
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(raw); err != nil {
			return fmt.Errorf("action %s: invalid webhook config: %w", a.ID, err)
		}
		a.Webhook = &cfg
	default:
		data, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("action %s: invalid config: %w", a.ID, err)
		}
		a.Raw = data
	}
	return nil
}

// SortActions orders actions by their stored Order, breaking ties by ID so the
// result never depends on the order of the underlying collection.
func SortActions(actions []StateAction) []StateAction {
	out := append([]StateAction(nil), actions...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FilterActions returns the actions with the given trigger, sorted by Order.
func FilterActions(actions []StateAction, trigger Trigger) []StateAction {
	var out []StateAction
	for _, a := range actions {
		if a.Trigger == trigger {
			out = append(out, a)
		}
	}
	return SortActions(out)
}

// ActionOutcome records how one action dispatch went.
type ActionOutcome struct {
	ActionID string        `json:"action_id" yaml:"action_id"`
	Type     ActionType    `json:"action_type" yaml:"action_type"`
	Phase    Trigger       `json:"phase" yaml:"phase"`
	Success  bool          `json:"success" yaml:"success"`
	Aborted  bool          `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	At       time.Time     `json:"at" yaml:"at"`
}

// ActionRequest is what the dispatcher hands to an ActionExecutor.
type ActionRequest struct {
	Action       StateAction
	Phase        Trigger
	ObjectID     string
	TenantID     string
	ConfigID     string
	TransitionID string
	FromStateID  string
	ToStateID    string
	Context      map[string]any
}
