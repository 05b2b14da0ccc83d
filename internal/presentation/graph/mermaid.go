package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
)

// GraphOverlay contains runtime data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []string
	CurrentState  string
}

// OverlayFor builds an overlay from an object's status record.
func OverlayFor(status *domain.ObjectLifecycleStatus) *GraphOverlay {
	if status == nil {
		return nil
	}
	overlay := &GraphOverlay{CurrentState: status.CurrentStateID}
	for _, e := range status.History {
		overlay.VisitedStates = append(overlay.VisitedStates, e.FromStateID)
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart of a lifecycle definition.
// It applies semantic styling:
// - Initial state: ((Circle))
// - Terminal state: (((Double circle)))
// - Default: [Rectangle]
// Transitions that require approval are dotted; guarded ones list their conditions.
func GenerateMermaid(def *domain.Definition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, s := range def.States {
		safeID := sanitizeMermaidID(s.ID)
		opener, closer := "[", "]"
		switch {
		case s.IsInitial:
			opener, closer = "((", "))"
		case s.IsTerminal:
			opener, closer = "(((", ")))"
		}
		label := s.Name
		if label == "" {
			label = s.ID
		}
		if n := len(def.ActionsFor(s.ID)); n > 0 {
			label = fmt.Sprintf("%s <br/> %d action(s)", label, n)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, escape(label), closer))
	}

	for _, t := range def.Transitions {
		from, to := sanitizeMermaidID(t.FromStateID), sanitizeMermaidID(t.ToStateID)
		label := t.ID
		if guard := describe(def.ConditionsFor(t.ID)); guard != "" {
			label += " <br/> " + guard
		}
		if t.RequiresApproval {
			sb.WriteString(fmt.Sprintf("    %s -. \"%s\" .-> %s\n", from, escape(label), to))
			continue
		}
		sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", from, escape(label), to))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(id)
			if safeID == "" || seen[safeID] || id == overlay.CurrentState {
				continue
			}
			seen[safeID] = true
			sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
		}
		if overlay.CurrentState != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentState)))
		}
	}

	return sb.String()
}

func describe(conditions []domain.Condition) string {
	parts := make([]string, 0, len(conditions))
	for _, c := range conditions {
		switch c.Operator {
		case domain.OpExists, domain.OpNotExists:
			parts = append(parts, fmt.Sprintf("%s %s", c.Attribute, c.Operator))
		default:
			parts = append(parts, fmt.Sprintf("%s %s %s", c.Attribute, c.Operator, c.Value))
		}
	}
	return strings.Join(parts, " and ")
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
