package condition

import (
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Evaluate reports whether a single condition holds for ctx.
//
// A missing attribute fails every operator except not_exists. Attributes that cannot be
// represented as a domain.Value (maps, structs) only satisfy exists.
func Evaluate(c domain.Condition, ctx map[string]any) bool {
	raw, present := Lookup(ctx, c.Attribute)

	switch c.Operator {
	case domain.OpExists:
		return present
	case domain.OpNotExists:
		return !present
	}
	if !present {
		return false
	}

	attr, err := domain.ValueOf(raw)
	if err != nil {
		return false
	}

	switch c.Operator {
	case domain.OpEquals:
		return equals(attr, c.Value)
	case domain.OpNotEquals:
		if c.Value.IsZero() {
			return false
		}
		return !equals(attr, c.Value)
	case domain.OpContains:
		return contains(attr, c.Value)
	case domain.OpGreaterThan:
		a, b, ok := numbers(attr, c.Value)
		return ok && a > b
	case domain.OpLessThan:
		a, b, ok := numbers(attr, c.Value)
		return ok && a < b
	case domain.OpIn:
		return in(attr, c.Value)
	}
	return false
}

// EvaluateAll evaluates every condition, without short-circuiting, so callers get a
// full diagnostic. An empty set is unconditional.
func EvaluateAll(conditions []domain.Condition, ctx map[string]any) domain.Evaluation {
	out := domain.Evaluation{
		AllMet:  true,
		Results: make([]domain.ConditionResult, 0, len(conditions)),
	}
	for _, c := range conditions {
		met := Evaluate(c, ctx)
		out.Results = append(out.Results, domain.ConditionResult{
			ConditionID: c.ID,
			Attribute:   c.Attribute,
			Operator:    c.Operator,
			Met:         met,
		})
		if !met {
			out.AllMet = false
		}
	}
	return out
}

// equals compares attr to want using the coercion of want's kind.
func equals(attr, want domain.Value) bool {
	switch want.Kind {
	case domain.KindString:
		return attr.Kind == domain.KindString && attr.Str == want.Str
	case domain.KindNumber:
		n, ok := toNumber(attr)
		return ok && n == want.Num
	case domain.KindBool:
		return attr.Kind == domain.KindBool && attr.Bool == want.Bool
	case domain.KindList:
		if attr.Kind != domain.KindList || len(attr.List) != len(want.List) {
			return false
		}
		for i := range want.List {
			if !equals(attr.List[i], want.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func contains(attr, want domain.Value) bool {
	switch attr.Kind {
	case domain.KindString:
		return want.Kind == domain.KindString && strings.Contains(attr.Str, want.Str)
	case domain.KindList:
		if want.Kind == domain.KindList || want.IsZero() {
			return false
		}
		for _, item := range attr.List {
			if equals(item, want) {
				return true
			}
		}
	}
	return false
}

func in(attr, want domain.Value) bool {
	if want.Kind != domain.KindList || attr.Kind == domain.KindList {
		return false
	}
	for _, item := range want.List {
		if equals(attr, item) {
			return true
		}
	}
	return false
}

func numbers(a, b domain.Value) (float64, float64, bool) {
	x, ok := toNumber(a)
	if !ok {
		return 0, 0, false
	}
	y, ok := toNumber(b)
	if !ok {
		return 0, 0, false
	}
	return x, y, true
}

// toNumber coerces numbers and numeric strings; bools are never numeric.
func toNumber(v domain.Value) (float64, bool) {
	switch v.Kind {
	case domain.KindNumber:
		return v.Num, true
	case domain.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
