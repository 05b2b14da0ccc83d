package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/waypoint/internal/presentation/graph"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	def := ports.ContractDefinition("acme", "onboarding")

	tests := []struct {
		name     string
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "State Shapes",
			contains: []string{
				`draft(("Draft"))`,
				`active["Active <br/> 2 action(s)"]`,
				`archived((("Archived")))`,
			},
		},
		{
			name: "Guarded Transition",
			contains: []string{
				`draft -- "activate <br/> email_verified equals true and profile.age greater_than 17 and role in ['admin', 'user'] and email exists" --> active`,
			},
		},
		{
			name: "Approval Transition Is Dotted",
			contains: []string{
				`active -. "archive" .-> archived`,
			},
		},
		{
			name:     "No Overlay",
			excludes: []string{"classDef"},
		},
		{
			name:    "Overlay",
			overlay: &graph.GraphOverlay{VisitedStates: []string{"draft", "draft", "active"}, CurrentState: "active"},
			contains: []string{
				"class draft visited;",
				"class active current;",
			},
			excludes: []string{"class active visited;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(def, tt.overlay)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, got, unwanted)
			}
		})
	}
}

func TestOverlayFor(t *testing.T) {
	assert.Nil(t, graph.OverlayFor(nil))

	status := &domain.ObjectLifecycleStatus{
		CurrentStateID: "archived",
		History: []domain.HistoryEntry{
			{FromStateID: "draft", ToStateID: "active"},
			{FromStateID: "active", ToStateID: "archived"},
		},
	}
	overlay := graph.OverlayFor(status)
	assert.Equal(t, "archived", overlay.CurrentState)
	assert.Equal(t, []string{"draft", "active"}, overlay.VisitedStates)
}

func TestSanitizedIDs(t *testing.T) {
	def := &domain.Definition{
		States: []domain.State{
			{ID: "in-review", Name: "In \"review\"", IsInitial: true},
			{ID: "done.ok"},
		},
		Transitions: []domain.Transition{{ID: "finish", FromStateID: "in-review", ToStateID: "done.ok"}},
	}
	got := graph.GenerateMermaid(def, nil)
	assert.Contains(t, got, `in_review(("In 'review'"))`)
	assert.Contains(t, got, `done_ok["done.ok"]`)
	assert.Contains(t, got, `in_review -- "finish" --> done_ok`)
}
