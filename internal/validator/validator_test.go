package validator_test

import (
	"testing"

	"github.com/aretw0/waypoint/internal/validator"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() *domain.Definition {
	return ports.ContractDefinition("acme", "onboarding")
}

func codes(err error) []string {
	var out []string
	for _, v := range domain.Violations(err) {
		out = append(out, v.Code)
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	report, err := validator.Validate(validDefinition())
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)
}

func TestValidate_ExactlyOneInitialState(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		def := validDefinition()
		def.States[0].IsInitial = false

		_, err := validator.Validate(def)
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Contains(t, codes(err), domain.CodeInitialState)
	})

	t.Run("two", func(t *testing.T) {
		def := validDefinition()
		def.States[1].IsInitial = true

		_, err := validator.Validate(def)
		require.Error(t, err)
		assert.Equal(t, []string{domain.CodeInitialState}, codes(err))
		assert.Contains(t, err.Error(), "found 2: draft, active")
	})
}

func TestValidate_TransitionFromTerminalState(t *testing.T) {
	def := validDefinition()
	def.Transitions = append(def.Transitions, domain.Transition{
		ID: "restore", Name: "Restore", FromStateID: "archived", ToStateID: "active",
	})

	_, err := validator.Validate(def)
	require.Error(t, err)
	assert.Equal(t, []string{domain.CodeTerminalSource}, codes(err))
}

func TestValidate_UnknownEndpoints(t *testing.T) {
	def := validDefinition()
	def.Transitions = append(def.Transitions, domain.Transition{
		ID: "ghost", Name: "Ghost", FromStateID: "active", ToStateID: "nowhere",
	}, domain.Transition{
		ID: "foreign", Name: "Foreign", ConfigID: "other-config", FromStateID: "draft", ToStateID: "active",
	})

	_, err := validator.Validate(def)
	require.Error(t, err)
	assert.ElementsMatch(t, []string{domain.CodeUnknownState, domain.CodeUnknownRef}, codes(err))
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	def := validDefinition()
	def.Config.Name = ""
	def.States[0].IsInitial = false
	def.States = append(def.States, domain.State{ID: "active", Name: "Dup"})
	def.Transitions = append(def.Transitions,
		domain.Transition{ID: "restore", Name: "Restore", FromStateID: "archived", ToStateID: "draft"},
		domain.Transition{ID: "activate", Name: "Again", FromStateID: "draft", ToStateID: "active"},
	)
	def.Conditions["activate"] = append(def.Conditions["activate"],
		domain.Condition{ID: "bad-op", Attribute: "x", Operator: "matches", Value: domain.StringValue("y")},
		domain.Condition{ID: "bad-in", Attribute: "x", Operator: domain.OpIn, Value: domain.StringValue("y")},
		domain.Condition{ID: "bad-gt", Attribute: "x", Operator: domain.OpGreaterThan, Value: domain.BoolValue(true)},
		domain.Condition{ID: "no-value", Attribute: "x", Operator: domain.OpEquals},
	)
	def.Conditions["missing-transition"] = []domain.Condition{
		{ID: "orphan", Attribute: "x", Operator: domain.OpExists},
	}

	_, err := validator.Validate(def)
	require.Error(t, err)
	got := codes(err)
	for _, want := range []string{
		domain.CodeMissingField,
		domain.CodeInitialState,
		domain.CodeDuplicateID,
		domain.CodeTerminalSource,
		domain.CodeInvalidOperator,
		domain.CodeInvalidValue,
		domain.CodeUnknownRef,
	} {
		assert.Contains(t, got, want)
	}
	assert.GreaterOrEqual(t, len(got), 10)
}

func TestValidate_Actions(t *testing.T) {
	def := validDefinition()
	def.Actions["active"] = append(def.Actions["active"],
		domain.StateAction{ID: "dup-order", StateID: "active", Type: "provision", Trigger: domain.OnEnter, Order: 1, FailurePolicy: domain.PolicyContinue},
		domain.StateAction{ID: "no-url", StateID: "active", Type: domain.ActionWebhook, Trigger: domain.OnExit, FailurePolicy: domain.PolicyAbort, Webhook: &domain.WebhookConfig{}},
		domain.StateAction{ID: "bad-trigger", StateID: "active", Type: "provision", Trigger: "on_visit", FailurePolicy: "retry"},
	)
	def.Actions["nowhere"] = []domain.StateAction{
		{ID: "orphan", StateID: "nowhere", Type: "provision", Trigger: domain.OnEnter, FailurePolicy: domain.PolicyContinue},
	}

	_, err := validator.Validate(def)
	require.Error(t, err)
	got := codes(err)
	assert.Contains(t, got, domain.CodeDuplicateOrder)
	assert.Contains(t, got, domain.CodeInvalidAction)
	assert.Contains(t, got, domain.CodeUnknownRef)

	var invalid int
	for _, c := range got {
		if c == domain.CodeInvalidAction {
			invalid++
		}
	}
	assert.Equal(t, 3, invalid, "missing url, bad trigger and bad policy")
}

func TestValidate_UnreachableStatesWarnOnly(t *testing.T) {
	def := validDefinition()
	def.States = append(def.States, domain.State{ID: "limbo", Name: "Limbo"})

	report, err := validator.Validate(def)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, validator.CodeUnreachable, report.Warnings[0].Code)
	assert.Equal(t, "states.limbo", report.Warnings[0].Path)
}

func TestValidate_AcceptedConfigsHaveOneInitialState(t *testing.T) {
	defs := []*domain.Definition{validDefinition()}
	mutated := validDefinition()
	mutated.States = append(mutated.States, domain.State{ID: "second-start", Name: "Second", IsInitial: true})
	defs = append(defs, mutated)

	for _, def := range defs {
		if _, err := validator.Validate(def); err != nil {
			continue
		}
		initials := 0
		for _, s := range def.States {
			if s.IsInitial {
				initials++
			}
		}
		assert.Equal(t, 1, initials)
	}
}

func TestValidate_Nil(t *testing.T) {
	_, err := validator.Validate(nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
