package tui_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/aretw0/waypoint/internal/presentation/tui"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestStatusMarkdown(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	status := &domain.ObjectLifecycleStatus{
		ObjectID: "u-1", TenantID: "acme", ConfigID: "onboarding",
		CurrentStateID: "active", Version: 2, UpdatedAt: at,
		History: []domain.HistoryEntry{{
			ID: "h-1", FromStateID: "draft", ToStateID: "active", TransitionID: "activate",
			At: at, TriggeredBy: "alice",
			Outcomes: []domain.ActionOutcome{{ActionID: "notify", Phase: domain.OnEnter, Success: false}},
		}},
	}

	md := tui.StatusMarkdown(status)
	assert.Contains(t, md, "# u-1")
	assert.Contains(t, md, "**Current state:** `active`")
	assert.Contains(t, md, "| 2026-03-01T12:00:00Z | `activate` | draft | active | alice | notify (on_enter, failed) |")

	status.History = nil
	assert.Contains(t, tui.StatusMarkdown(status), "_No transitions yet._")
}

func TestEvaluationMarkdown(t *testing.T) {
	md := tui.EvaluationMarkdown("activate", domain.Evaluation{
		AllMet: false,
		Results: []domain.ConditionResult{
			{ConditionID: "c-1", Attribute: "email_verified", Operator: domain.OpEquals, Met: true},
			{ConditionID: "c-2", Attribute: "profile.age", Operator: domain.OpGreaterThan, Met: false},
		},
	})
	assert.Contains(t, md, "is blocked")
	assert.Contains(t, md, "| c-2 | `profile.age` | greater_than | **no** |")

	assert.Contains(t, tui.EvaluationMarkdown("noop", domain.Evaluation{AllMet: true}), "_No conditions._")
}

func TestViolationsMarkdown(t *testing.T) {
	md := tui.ViolationsMarkdown("onboarding",
		[]domain.Violation{{Code: domain.CodeInitialState, Path: "states", Message: "exactly one initial state required"}},
		[]domain.Violation{{Code: "unreachable_state", Path: "states[3]", Message: "orphan"}})
	assert.Contains(t, md, "has 1 violation(s)")
	assert.Contains(t, md, "- **initial_state** `states`")
	assert.Contains(t, md, "_warning_ **unreachable_state**")

	assert.Contains(t, tui.ViolationsMarkdown("ok", nil, nil), "`ok` is valid")
}

func TestRendererPassthroughWithoutTerminal(t *testing.T) {
	render := tui.NewRenderer(nil)
	out, err := render("# Title")
	assert.NoError(t, err)
	assert.Equal(t, "# Title", out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.NotEmpty(t, buf.String())
}
