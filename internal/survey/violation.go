package survey

import (
	"fmt"
	"strings"
)

// Validation rules.
const (
	RuleRequired      = "required"
	RuleOption        = "option"
	RuleRange         = "range"
	RuleMaxSelections = "max_selections"
	RuleFormat        = "format"
)

// Violation names a field that failed one rule.
type Violation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Violations is an ordered list of rule failures. Empty means valid.
type Violations []Violation

// Fields returns the distinct violated field names in order.
func (v Violations) Fields() []string {
	var names []string
	seen := make(map[string]bool, len(v))
	for _, viol := range v {
		if !seen[viol.Field] {
			seen[viol.Field] = true
			names = append(names, viol.Field)
		}
	}
	return names
}

// Err returns a *ValidationError for a non-empty list and nil otherwise.
func (v Violations) Err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Violations: v}
}

// ValidationError wraps violations for callers that need an error value,
// such as the CLI.
type ValidationError struct {
	Violations Violations
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s (%s)", v.Field, v.Rule)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
