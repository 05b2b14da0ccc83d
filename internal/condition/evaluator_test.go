package condition_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/waypoint/internal/condition"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cond(attr string, op domain.Operator, v any) domain.Condition {
	return domain.Condition{ID: "c-" + attr, Attribute: attr, Operator: op, Value: domain.MustValue(v)}
}

func TestEvaluate_Equals(t *testing.T) {
	c := cond("role", domain.OpEquals, "admin")
	assert.True(t, condition.Evaluate(c, map[string]any{"role": "admin"}))
	assert.False(t, condition.Evaluate(c, map[string]any{"role": "user"}))
	assert.False(t, condition.Evaluate(c, map[string]any{}))
}

func TestEvaluate_Presence(t *testing.T) {
	exists := domain.Condition{ID: "c1", Attribute: "missing.path", Operator: domain.OpExists}
	notExists := domain.Condition{ID: "c2", Attribute: "missing.path", Operator: domain.OpNotExists}

	assert.False(t, condition.Evaluate(exists, map[string]any{}))
	assert.True(t, condition.Evaluate(notExists, map[string]any{}))

	ctx := map[string]any{"missing": map[string]any{"path": 0}}
	assert.True(t, condition.Evaluate(exists, ctx))
	assert.False(t, condition.Evaluate(notExists, ctx))

	// Explicit nil counts as missing
	assert.False(t, condition.Evaluate(exists, map[string]any{"missing": map[string]any{"path": nil}}))
}

func TestEvaluate_MissingAttributeFailsEveryComparison(t *testing.T) {
	ops := []domain.Operator{
		domain.OpEquals, domain.OpNotEquals, domain.OpContains,
		domain.OpGreaterThan, domain.OpLessThan, domain.OpIn,
	}
	for _, op := range ops {
		t.Run(string(op), func(t *testing.T) {
			c := cond("absent", op, []any{"x"})
			assert.False(t, condition.Evaluate(c, map[string]any{"other": "x"}))
		})
	}
}

func TestEvaluate_CoercionTable(t *testing.T) {
	tests := []struct {
		name string
		cond domain.Condition
		ctx  map[string]any
		want bool
	}{
		{"bool equals", cond("verified", domain.OpEquals, true), map[string]any{"verified": true}, true},
		{"bool vs string is not equal", cond("verified", domain.OpEquals, true), map[string]any{"verified": "true"}, false},
		{"number equals int", cond("age", domain.OpEquals, 30), map[string]any{"age": 30}, true},
		{"number equals numeric string", cond("age", domain.OpEquals, 30), map[string]any{"age": "30"}, true},
		{"number equals json.Number", cond("age", domain.OpEquals, 30), map[string]any{"age": json.Number("30")}, true},
		{"string equals does not coerce numbers", cond("code", domain.OpEquals, "7"), map[string]any{"code": 7}, false},
		{"list equals element-wise", cond("tags", domain.OpEquals, []any{"a", "b"}), map[string]any{"tags": []string{"a", "b"}}, true},
		{"list equals order matters", cond("tags", domain.OpEquals, []any{"a", "b"}), map[string]any{"tags": []string{"b", "a"}}, false},

		{"not_equals differs", cond("role", domain.OpNotEquals, "admin"), map[string]any{"role": "user"}, true},
		{"not_equals same", cond("role", domain.OpNotEquals, "admin"), map[string]any{"role": "admin"}, false},
		{"not_equals across kinds", cond("flag", domain.OpNotEquals, true), map[string]any{"flag": "yes"}, true},

		{"contains substring", cond("email", domain.OpContains, "@example.com"), map[string]any{"email": "a@example.com"}, true},
		{"contains substring miss", cond("email", domain.OpContains, "@corp"), map[string]any{"email": "a@example.com"}, false},
		{"contains list element", cond("roles", domain.OpContains, "admin"), map[string]any{"roles": []any{"user", "admin"}}, true},
		{"contains list numeric element", cond("ids", domain.OpContains, 3), map[string]any{"ids": []int{1, 2, 3}}, true},
		{"contains on number", cond("age", domain.OpContains, "3"), map[string]any{"age": 30}, false},
		{"contains list value rejected", cond("roles", domain.OpContains, []any{"admin"}), map[string]any{"roles": []any{"admin"}}, false},

		{"greater_than", cond("score", domain.OpGreaterThan, 10), map[string]any{"score": 10.5}, true},
		{"greater_than equal", cond("score", domain.OpGreaterThan, 10), map[string]any{"score": 10}, false},
		{"greater_than numeric string", cond("score", domain.OpGreaterThan, "9"), map[string]any{"score": "10"}, true},
		{"greater_than non numeric", cond("score", domain.OpGreaterThan, 10), map[string]any{"score": "high"}, false},
		{"greater_than bool never numeric", cond("score", domain.OpGreaterThan, 0), map[string]any{"score": true}, false},
		{"less_than", cond("risk", domain.OpLessThan, 0.5), map[string]any{"risk": 0.2}, true},
		{"less_than uint", cond("risk", domain.OpLessThan, 5), map[string]any{"risk": uint8(9)}, false},
		{"less_than NaN string", cond("risk", domain.OpLessThan, 5), map[string]any{"risk": "NaN"}, false},

		{"in list", cond("country", domain.OpIn, []any{"BR", "PT"}), map[string]any{"country": "BR"}, true},
		{"in list miss", cond("country", domain.OpIn, []any{"BR", "PT"}), map[string]any{"country": "US"}, false},
		{"in numeric list", cond("tier", domain.OpIn, []any{1, 2}), map[string]any{"tier": 2}, true},
		{"in expects list value", cond("country", domain.OpIn, "BR"), map[string]any{"country": "BR"}, false},
		{"in with list attribute", cond("country", domain.OpIn, []any{"BR"}), map[string]any{"country": []any{"BR"}}, false},

		{"map attribute only exists", cond("profile", domain.OpEquals, "x"), map[string]any{"profile": map[string]any{"a": 1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, condition.Evaluate(tt.cond, tt.ctx))
		})
	}
}

func TestEvaluate_DottedPath(t *testing.T) {
	ctx := map[string]any{
		"profile": map[string]any{
			"email_verified": true,
			"labels":         map[string]string{"team": "core"},
			"addresses":      []any{map[string]any{"city": "Recife"}},
		},
	}

	assert.True(t, condition.Evaluate(cond("profile.email_verified", domain.OpEquals, true), ctx))
	assert.True(t, condition.Evaluate(cond("profile.labels.team", domain.OpEquals, "core"), ctx))
	assert.True(t, condition.Evaluate(cond("profile.addresses.0.city", domain.OpEquals, "Recife"), ctx))
	assert.False(t, condition.Evaluate(cond("profile.addresses.1.city", domain.OpExists, nil), ctx))
	assert.False(t, condition.Evaluate(cond("profile..email_verified", domain.OpExists, nil), ctx))
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	c := domain.Condition{ID: "c", Attribute: "a", Operator: "matches", Value: domain.StringValue("x")}
	assert.False(t, condition.Evaluate(c, map[string]any{"a": "x"}))
}

func TestEvaluateAll_Empty(t *testing.T) {
	for _, ctx := range []map[string]any{nil, {}, {"anything": 1}} {
		got := condition.EvaluateAll(nil, ctx)
		assert.True(t, got.AllMet)
		assert.Empty(t, got.Results)
	}
}

func TestEvaluateAll_NoShortCircuit(t *testing.T) {
	conds := []domain.Condition{
		cond("first", domain.OpEquals, "x"),
		cond("second", domain.OpExists, nil),
		cond("third", domain.OpEquals, "z"),
	}
	got := condition.EvaluateAll(conds, map[string]any{"second": 1, "third": "z"})

	assert.False(t, got.AllMet)
	require.Len(t, got.Results, 3)
	assert.False(t, got.Results[0].Met)
	assert.True(t, got.Results[1].Met)
	assert.True(t, got.Results[2].Met)
	assert.Equal(t, "c-first", got.Results[0].ConditionID)

	unmet := got.Unmet()
	require.Len(t, unmet, 1)
	assert.Equal(t, "c-first", unmet[0].ConditionID)
}

func TestLookup(t *testing.T) {
	ctx := map[string]any{"a": map[string]any{"b": []string{"x", "y"}}}

	v, ok := condition.Lookup(ctx, "a.b.1")
	require.True(t, ok)
	assert.Equal(t, "y", v)

	_, ok = condition.Lookup(ctx, "a.b.2")
	assert.False(t, ok)
	_, ok = condition.Lookup(ctx, "")
	assert.False(t, ok)
	_, ok = condition.Lookup(nil, "a")
	assert.False(t, ok)
}
