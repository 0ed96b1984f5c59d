package leadassignment

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jordanlanch/crmleads/pkg/models"
	"golang.org/x/text/cases"
)

// foldCase applies Unicode case folding. Casers are stateful, so each call gets its own.
func foldCase(s string) string {
	return cases.Fold().String(s)
}

// Matches reports whether lead satisfies every condition group of rule.
// Absent groups do not constrain. The rule's active flag is not consulted.
func Matches(lead *models.Lead, rule *models.AssignmentRule) bool {
	c := rule.Conditions

	if len(c.Regions) > 0 && !slices.Contains(c.Regions, lead.Region) {
		return false
	}
	if len(c.LeadSources) > 0 && !slices.Contains(c.LeadSources, lead.Source) {
		return false
	}
	if c.ValueRange != nil && !inRange(lead.Value, c.ValueRange) {
		return false
	}
	if len(c.LeadStatuses) > 0 && !slices.Contains(c.LeadStatuses, lead.Status) {
		return false
	}
	for _, cf := range c.CustomFields {
		if !matchCustomField(lead.CustomFields, cf) {
			return false
		}
	}
	return true
}

// inRange treats a lead without a value as 0.
func inRange(value *float64, r *models.ValueRange) bool {
	v := 0.0
	if value != nil {
		v = *value
	}
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

func matchCustomField(fields models.JSONMap, cond models.CustomFieldCondition) bool {
	actual, ok := fields[cond.Field]
	if !ok || actual == nil {
		return false
	}

	switch cond.Operator {
	case models.OpEquals:
		return valuesEqual(actual, cond.Value)
	case models.OpContains:
		return strings.Contains(foldString(actual), foldString(cond.Value))
	case models.OpStartsWith:
		return strings.HasPrefix(foldString(actual), foldString(cond.Value))
	case models.OpEndsWith:
		return strings.HasSuffix(foldString(actual), foldString(cond.Value))
	case models.OpGreaterThan, models.OpLessThan:
		a, okA := toNumber(actual)
		b, okB := toNumber(cond.Value)
		if !okA || !okB {
			return false
		}
		if cond.Operator == models.OpGreaterThan {
			return a > b
		}
		return a < b
	}
	return false
}

// valuesEqual is exact: numbers compare numerically, anything else must have
// the same type and formatted value. "10" does not equal 10.
func valuesEqual(a, b any) bool {
	na, okA := numeric(a)
	nb, okB := numeric(b)
	if okA || okB {
		return okA && okB && na == nb
	}
	return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b) && stringify(a) == stringify(b)
}

// numeric accepts only values that are numbers already.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// toNumber also parses numeric strings.
func toNumber(v any) (float64, bool) {
	if n, ok := numeric(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func foldString(v any) string {
	return foldCase(stringify(v))
}
