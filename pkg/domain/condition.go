package domain

// Operator is the comparison a Condition applies between a context attribute and its Value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
)

// Operators lists every supported operator.
var Operators = []Operator{
	OpEquals, OpNotEquals, OpContains, OpGreaterThan, OpLessThan, OpIn, OpExists, OpNotExists,
}

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	for _, known := range Operators {
		if op == known {
			return true
		}
	}
	return false
}

// Condition is one guard predicate attached to a transition.
// Attribute is a dotted path into the caller-supplied context (e.g. "profile.email_verified").
type Condition struct {
	ID           string   `json:"id" yaml:"id"`
	TransitionID string   `json:"transition_id" yaml:"transition_id"`
	Attribute    string   `json:"attribute" yaml:"attribute"`
	Operator     Operator `json:"operator" yaml:"operator"`
	Value        Value    `json:"value" yaml:"value"`
}

// ConditionResult is the outcome of one condition inside an Evaluation.
type ConditionResult struct {
	ConditionID string   `json:"condition_id"`
	Attribute   string   `json:"attribute"`
	Operator    Operator `json:"operator"`
	Met         bool     `json:"met"`
}

// Evaluation aggregates the results of a transition's condition set.
type Evaluation struct {
	AllMet  bool              `json:"all_met"`
	Results []ConditionResult `json:"results"`
}

// Unmet returns the results that did not pass.
func (e Evaluation) Unmet() []ConditionResult {
	var out []ConditionResult
	for _, r := range e.Results {
		if !r.Met {
			out = append(out, r)
		}
	}
	return out
}
