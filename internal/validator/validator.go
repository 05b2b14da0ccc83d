package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
)

// CodeUnreachable marks states no transition path from the initial state can reach.
const CodeUnreachable = "unreachable_state"

// Report carries the non-fatal findings of a successful validation.
type Report struct {
	Warnings []domain.Violation `json:"warnings,omitempty"`
}

// Validate checks the structural invariants of a lifecycle definition.
// Every violation found is collected into a single *domain.ValidationError so callers
// can fix all issues in one round-trip. Unreachable states are only warnings.
func Validate(def *domain.Definition) (Report, error) {
	if def == nil {
		return Report{}, &domain.ValidationError{Violations: []domain.Violation{
			{Code: domain.CodeMissingField, Message: "definition is nil"},
		}}
	}

	v := &collector{}
	validateConfig(v, def)
	states := validateStates(v, def)
	transitions := validateTransitions(v, def, states)
	validateConditions(v, def, transitions)
	validateActions(v, def, states)

	report := Report{Warnings: unreachable(def, states)}
	if len(v.violations) > 0 {
		return report, &domain.ValidationError{Violations: v.violations}
	}
	return report, nil
}

type collector struct {
	violations []domain.Violation
}

func (c *collector) add(code, path, format string, args ...any) {
	c.violations = append(c.violations, domain.Violation{
		Code:    code,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

func validateConfig(v *collector, def *domain.Definition) {
	cfg := def.Config
	if strings.TrimSpace(cfg.ID) == "" {
		v.add(domain.CodeMissingField, "config.id", "config id is required")
	}
	if strings.TrimSpace(cfg.TenantID) == "" {
		v.add(domain.CodeMissingField, "config.tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(cfg.ObjectType) == "" {
		v.add(domain.CodeMissingField, "config.object_type", "object type is required")
	}
	if strings.TrimSpace(cfg.Name) == "" {
		v.add(domain.CodeMissingField, "config.name", "name is required")
	}
	if !cfg.Status.Valid() {
		v.add(domain.CodeInvalidStatus, "config.status", "unknown status %q", cfg.Status)
	}
}

func validateStates(v *collector, def *domain.Definition) map[string]domain.State {
	states := make(map[string]domain.State, len(def.States))
	var initials []string

	for i, s := range def.States {
		path := fmt.Sprintf("states[%d]", i)
		if strings.TrimSpace(s.ID) == "" {
			v.add(domain.CodeMissingField, path+".id", "state id is required")
			continue
		}
		path = "states." + s.ID
		if _, dup := states[s.ID]; dup {
			v.add(domain.CodeDuplicateID, path, "state %q is declared more than once", s.ID)
			continue
		}
		states[s.ID] = s
		if strings.TrimSpace(s.Name) == "" {
			v.add(domain.CodeMissingField, path+".name", "state name is required")
		}
		if s.ConfigID != "" && s.ConfigID != def.Config.ID {
			v.add(domain.CodeUnknownRef, path+".config_id", "state belongs to config %q", s.ConfigID)
		}
		if s.IsInitial {
			initials = append(initials, s.ID)
		}
	}

	switch len(initials) {
	case 1:
	case 0:
		v.add(domain.CodeInitialState, "states", "exactly one initial state is required, found none")
	default:
		v.add(domain.CodeInitialState, "states", "exactly one initial state is required, found %d: %s",
			len(initials), strings.Join(initials, ", "))
	}
	return states
}

func validateTransitions(v *collector, def *domain.Definition, states map[string]domain.State) map[string]domain.Transition {
	transitions := make(map[string]domain.Transition, len(def.Transitions))

	for i, t := range def.Transitions {
		path := fmt.Sprintf("transitions[%d]", i)
		if strings.TrimSpace(t.ID) == "" {
			v.add(domain.CodeMissingField, path+".id", "transition id is required")
			continue
		}
		path = "transitions." + t.ID
		if _, dup := transitions[t.ID]; dup {
			v.add(domain.CodeDuplicateID, path, "transition %q is declared more than once", t.ID)
			continue
		}
		transitions[t.ID] = t

		if t.ConfigID != "" && t.ConfigID != def.Config.ID {
			v.add(domain.CodeUnknownRef, path+".config_id", "transition belongs to config %q", t.ConfigID)
		}
		from, fromOK := states[t.FromStateID]
		if !fromOK {
			v.add(domain.CodeUnknownState, path+".from_state_id", "state %q is not part of this config", t.FromStateID)
		}
		if _, ok := states[t.ToStateID]; !ok {
			v.add(domain.CodeUnknownState, path+".to_state_id", "state %q is not part of this config", t.ToStateID)
		}
		if fromOK && from.IsTerminal {
			v.add(domain.CodeTerminalSource, path+".from_state_id", "transition may not originate from terminal state %q", t.FromStateID)
		}
	}
	return transitions
}

func validateConditions(v *collector, def *domain.Definition, transitions map[string]domain.Transition) {
	for _, tid := range sortedKeys(def.Conditions) {
		base := "conditions." + tid
		if _, ok := transitions[tid]; !ok {
			v.add(domain.CodeUnknownRef, base, "transition %q is not part of this config", tid)
		}
		seen := make(map[string]bool)
		for i, c := range def.Conditions[tid] {
			path := fmt.Sprintf("%s[%d]", base, i)
			if strings.TrimSpace(c.ID) == "" {
				v.add(domain.CodeMissingField, path+".id", "condition id is required")
			} else if seen[c.ID] {
				v.add(domain.CodeDuplicateID, path+".id", "condition %q is declared more than once", c.ID)
			}
			seen[c.ID] = true

			if c.TransitionID != "" && c.TransitionID != tid {
				v.add(domain.CodeUnknownRef, path+".transition_id", "condition is attached to %q, filed under %q", c.TransitionID, tid)
			}
			if strings.TrimSpace(c.Attribute) == "" {
				v.add(domain.CodeMissingField, path+".attribute", "attribute is required")
			}
			if !c.Operator.Valid() {
				v.add(domain.CodeInvalidOperator, path+".operator", "unknown operator %q", c.Operator)
				continue
			}
			validateOperand(v, path, c)
		}
	}
}

func validateOperand(v *collector, path string, c domain.Condition) {
	switch c.Operator {
	case domain.OpExists, domain.OpNotExists:
		return
	case domain.OpIn:
		if c.Value.Kind != domain.KindList {
			v.add(domain.CodeInvalidValue, path+".value", "operator in expects a list value, got %s", kindOf(c.Value))
		}
	case domain.OpGreaterThan, domain.OpLessThan:
		if c.Value.Kind != domain.KindNumber && c.Value.Kind != domain.KindString {
			v.add(domain.CodeInvalidValue, path+".value", "operator %s expects a numeric value, got %s", c.Operator, kindOf(c.Value))
		}
	default:
		if c.Value.IsZero() {
			v.add(domain.CodeInvalidValue, path+".value", "operator %s requires a value", c.Operator)
		}
	}
}

func validateActions(v *collector, def *domain.Definition, states map[string]domain.State) {
	type slot struct {
		trigger domain.Trigger
		order   int
	}

	for _, sid := range sortedKeys(def.Actions) {
		base := "actions." + sid
		if _, ok := states[sid]; !ok {
			v.add(domain.CodeUnknownRef, base, "state %q is not part of this config", sid)
		}
		seen := make(map[string]bool)
		orders := make(map[slot]string)
		for i, a := range def.Actions[sid] {
			path := fmt.Sprintf("%s[%d]", base, i)
			if strings.TrimSpace(a.ID) == "" {
				v.add(domain.CodeMissingField, path+".id", "action id is required")
			} else if seen[a.ID] {
				v.add(domain.CodeDuplicateID, path+".id", "action %q is declared more than once", a.ID)
			}
			seen[a.ID] = true

			if a.StateID != "" && a.StateID != sid {
				v.add(domain.CodeUnknownRef, path+".state_id", "action is attached to %q, filed under %q", a.StateID, sid)
			}
			if a.Type == "" {
				v.add(domain.CodeInvalidAction, path+".action_type", "action type is required")
			}
			if !a.Trigger.Valid() {
				v.add(domain.CodeInvalidAction, path+".trigger", "unknown trigger %q", a.Trigger)
			}
			if !a.FailurePolicy.Valid() {
				v.add(domain.CodeInvalidAction, path+".failure_policy", "unknown failure policy %q", a.FailurePolicy)
			}
			if a.Timeout < 0 {
				v.add(domain.CodeInvalidAction, path+".timeout", "timeout must not be negative")
			}
			if a.Type == domain.ActionWebhook && (a.Webhook == nil || strings.TrimSpace(a.Webhook.URL) == "") {
				v.add(domain.CodeInvalidAction, path+".config.url", "webhook action requires a url")
			}

			if a.Trigger.Valid() {
				key := slot{a.Trigger, a.Order}
				if other, dup := orders[key]; dup {
					v.add(domain.CodeDuplicateOrder, path+".order", "actions %q and %q share order %d on %s", other, a.ID, a.Order, a.Trigger)
				} else {
					orders[key] = a.ID
				}
			}
		}
	}
}

// unreachable walks the transition graph breadth-first from the initial state.
func unreachable(def *domain.Definition, states map[string]domain.State) []domain.Violation {
	start, ok := def.InitialState()
	if !ok {
		return nil
	}

	edges := make(map[string][]string)
	for _, t := range def.Transitions {
		edges[t.FromStateID] = append(edges[t.FromStateID], t.ToStateID)
	}

	visited := map[string]bool{start.ID: true}
	queue := []string{start.ID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range edges[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	var warnings []domain.Violation
	for _, s := range def.States {
		if _, known := states[s.ID]; !known || visited[s.ID] {
			continue
		}
		visited[s.ID] = true
		warnings = append(warnings, domain.Violation{
			Code:    CodeUnreachable,
			Path:    "states." + s.ID,
			Message: fmt.Sprintf("state %q is unreachable from initial state %q", s.ID, start.ID),
		})
	}
	return warnings
}

func kindOf(v domain.Value) string {
	if v.IsZero() {
		return "nothing"
	}
	return string(v.Kind)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
