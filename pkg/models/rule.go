package models

import (
	"encoding/json"
	"time"
)

// FieldOperator compares a lead custom field with a rule value.
type FieldOperator string

const (
	OpEquals      FieldOperator = "equals"
	OpContains    FieldOperator = "contains"
	OpStartsWith  FieldOperator = "starts_with"
	OpEndsWith    FieldOperator = "ends_with"
	OpGreaterThan FieldOperator = "greater_than"
	OpLessThan    FieldOperator = "less_than"
)

// FieldOperators lists every supported operator.
var FieldOperators = []FieldOperator{OpEquals, OpContains, OpStartsWith, OpEndsWith, OpGreaterThan, OpLessThan}

// ValueRange bounds the lead value inclusively. Either end may be absent.
type ValueRange struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// CustomFieldCondition is a predicate on one lead custom field.
type CustomFieldCondition struct {
	Field    string        `json:"field" yaml:"field" validate:"required"`
	Operator FieldOperator `json:"operator" yaml:"operator" validate:"required,oneof=equals contains starts_with ends_with greater_than less_than"`
	Value    any           `json:"value" yaml:"value"`
}

// RuleConditions is an all-of set of criteria. An empty group places no constraint.
type RuleConditions struct {
	Regions      []string               `json:"regions,omitempty" yaml:"regions,omitempty"`
	LeadSources  []LeadSource           `json:"lead_sources,omitempty" yaml:"lead_sources,omitempty"`
	ValueRange   *ValueRange            `json:"value_range,omitempty" yaml:"value_range,omitempty"`
	LeadStatuses []LeadStatus           `json:"lead_statuses,omitempty" yaml:"lead_statuses,omitempty"`
	CustomFields []CustomFieldCondition `json:"custom_fields,omitempty" yaml:"custom_fields,omitempty" validate:"dive"`
}

// AssignmentRule routes matching leads to a strategy. Higher Priority is tried first.
type AssignmentRule struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	Priority    int
	Conditions  RuleConditions
	Strategy    Strategy
	Fallback    *Fallback
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ruleJSON struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	IsActive    bool           `json:"is_active"`
	Priority    int            `json:"priority"`
	Conditions  RuleConditions `json:"conditions"`
	Strategy    StrategySpec   `json:"strategy"`
	Fallback    *Fallback      `json:"fallback,omitempty"`
	CreatedBy   string         `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// MarshalJSON writes the strategy with its type discriminator.
func (r AssignmentRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleJSON{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		Priority:    r.Priority,
		Conditions:  r.Conditions,
		Strategy:    SpecOf(r.Strategy),
		Fallback:    r.Fallback,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	})
}

// UnmarshalJSON reads the strategy by its type discriminator.
func (r *AssignmentRule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st, err := raw.Strategy.Build()
	if err != nil {
		return err
	}
	*r = AssignmentRule{
		ID:          raw.ID,
		Name:        raw.Name,
		Description: raw.Description,
		IsActive:    raw.IsActive,
		Priority:    raw.Priority,
		Conditions:  raw.Conditions,
		Strategy:    st,
		Fallback:    raw.Fallback,
		CreatedBy:   raw.CreatedBy,
		CreatedAt:   raw.CreatedAt,
		UpdatedAt:   raw.UpdatedAt,
	}
	return nil
}

// DailyCap returns the per-user daily cap carried by the rule's strategy, or def.
func (r *AssignmentRule) DailyCap(def int) int {
	if la, ok := r.Strategy.(LeastAssigned); ok && la.MaxPerDay > 0 {
		return la.MaxPerDay
	}
	return def
}

// RequiredSkills returns the skills of a skill-based strategy, else nil.
func (r *AssignmentRule) RequiredSkills() []string {
	if sb, ok := r.Strategy.(SkillBased); ok {
		return sb.Skills
	}
	return nil
}

// RuleFilter narrows rule listings.
type RuleFilter struct {
	Search string
	Active *bool
	Page   int
	Limit  int
}

// RuleStats summarizes the rule table.
type RuleStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}
