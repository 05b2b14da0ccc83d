package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
)

// StatusMarkdown describes an object's status and history.
func StatusMarkdown(status *domain.ObjectLifecycleStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", status.ObjectID)
	fmt.Fprintf(&sb, "- **Config:** `%s` (tenant `%s`)\n", status.ConfigID, status.TenantID)
	fmt.Fprintf(&sb, "- **Current state:** `%s`\n", status.CurrentStateID)
	fmt.Fprintf(&sb, "- **Version:** %d\n", status.Version)
	fmt.Fprintf(&sb, "- **Updated:** %s\n\n", status.UpdatedAt.Format(time.RFC3339))

	if len(status.History) == 0 {
		sb.WriteString("_No transitions yet._\n")
		return sb.String()
	}

	sb.WriteString("## History\n\n")
	sb.WriteString("| At | Transition | From | To | By | Actions |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, e := range status.History {
		fmt.Fprintf(&sb, "| %s | `%s` | %s | %s | %s | %s |\n",
			e.At.Format(time.RFC3339), e.TransitionID, e.FromStateID, e.ToStateID, e.TriggeredBy, outcomes(e.Outcomes))
	}
	return sb.String()
}

func outcomes(list []domain.ActionOutcome) string {
	if len(list) == 0 {
		return "-"
	}
	parts := make([]string, len(list))
	for i, o := range list {
		mark := "ok"
		if !o.Success {
			mark = "failed"
		}
		parts[i] = fmt.Sprintf("%s (%s, %s)", o.ActionID, o.Phase, mark)
	}
	return strings.Join(parts, ", ")
}

// EvaluationMarkdown lists each condition of a dry run.
func EvaluationMarkdown(transitionID string, eval domain.Evaluation) string {
	var sb strings.Builder
	verdict := "allowed"
	if !eval.AllMet {
		verdict = "blocked"
	}
	fmt.Fprintf(&sb, "# Transition `%s` is %s\n\n", transitionID, verdict)
	if len(eval.Results) == 0 {
		sb.WriteString("_No conditions._\n")
		return sb.String()
	}
	sb.WriteString("| Condition | Attribute | Operator | Met |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, r := range eval.Results {
		met := "yes"
		if !r.Met {
			met = "**no**"
		}
		fmt.Fprintf(&sb, "| %s | `%s` | %s | %s |\n", r.ConditionID, r.Attribute, r.Operator, met)
	}
	return sb.String()
}

// ViolationsMarkdown lists validation findings of one config.
func ViolationsMarkdown(configID string, violations, warnings []domain.Violation) string {
	var sb strings.Builder
	if len(violations) == 0 {
		fmt.Fprintf(&sb, "## `%s` is valid\n\n", configID)
	} else {
		fmt.Fprintf(&sb, "## `%s` has %d violation(s)\n\n", configID, len(violations))
		for _, v := range violations {
			fmt.Fprintf(&sb, "- **%s** `%s`: %s\n", v.Code, v.Path, v.Message)
		}
		sb.WriteString("\n")
	}
	for _, w := range warnings {
		fmt.Fprintf(&sb, "- _warning_ **%s** `%s`: %s\n", w.Code, w.Path, w.Message)
	}
	return sb.String()
}
