package loam

// DefinitionMetadata is the document shape of a lifecycle definition file.
// It uses "mapstructure" tags to match standard Frontmatter/YAML/JSON keys.
type DefinitionMetadata struct {
	ID          string               `json:"id" mapstructure:"id"`
	TenantID    string               `json:"tenant_id" mapstructure:"tenant_id"`
	ObjectType  string               `json:"object_type" mapstructure:"object_type"`
	Name        string               `json:"name" mapstructure:"name"`
	Status      string               `json:"status" mapstructure:"status"`
	States      []StateMetadata      `json:"states" mapstructure:"states"`
	Transitions []TransitionMetadata `json:"transitions" mapstructure:"transitions"`
}

type StateMetadata struct {
	ID       string           `json:"id" mapstructure:"id"`
	Name     string           `json:"name" mapstructure:"name"`
	Initial  bool             `json:"initial" mapstructure:"initial"`
	Terminal bool             `json:"terminal" mapstructure:"terminal"`
	Actions  []ActionMetadata `json:"actions" mapstructure:"actions"`
}

type ActionMetadata struct {
	ID            string         `json:"id" mapstructure:"id"`
	Type          string         `json:"type" mapstructure:"type"`
	Trigger       string         `json:"trigger" mapstructure:"trigger"`
	Order         *int           `json:"order,omitempty" mapstructure:"order"`
	FailurePolicy string         `json:"failure_policy" mapstructure:"failure_policy"`
	Timeout       string         `json:"timeout,omitempty" mapstructure:"timeout"`
	Config        map[string]any `json:"config" mapstructure:"config"`
}

type TransitionMetadata struct {
	ID               string              `json:"id" mapstructure:"id"`
	Name             string              `json:"name" mapstructure:"name"`
	From             string              `json:"from" mapstructure:"from"`
	To               string              `json:"to" mapstructure:"to"`
	RequiresApproval bool                `json:"requires_approval" mapstructure:"requires_approval"`
	Conditions       []ConditionMetadata `json:"conditions" mapstructure:"conditions"`
}

type ConditionMetadata struct {
	ID        string `json:"id" mapstructure:"id"`
	Attribute string `json:"attribute" mapstructure:"attribute"`
	Operator  string `json:"operator" mapstructure:"operator"`
	Value     any    `json:"value" mapstructure:"value"`
}
