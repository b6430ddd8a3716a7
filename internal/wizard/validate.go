package wizard

import "github.com/roach88/tally/internal/survey"

// firstValue returns the first non-blank normalized input, or "".
func firstValue(raw []string) string {
	for _, r := range raw {
		if v := survey.Normalize(r); v != "" {
			return v
		}
	}
	return ""
}

// validateField applies the rules of f to raw input.
func validateField(f survey.Field, raw []string) survey.Violations {
	var out survey.Violations
	add := func(rule string) {
		out = append(out, survey.Violation{Field: f.Name, Rule: rule})
	}

	switch f.Kind {
	case survey.KindMulti:
		sel := survey.CleanSelection(raw)
		if f.Required && len(sel) == 0 {
			add(survey.RuleRequired)
		}
		if len(f.Options) > 0 {
			for _, v := range sel {
				if !f.HasOption(v) {
					add(survey.RuleOption)
					break
				}
			}
		}
		if f.MaxSelections > 0 && len(sel) > f.MaxSelections {
			add(survey.RuleMaxSelections)
		}

	case survey.KindRating:
		v := firstValue(raw)
		if v == "" {
			if f.Required {
				add(survey.RuleRequired)
			}
			break
		}
		if _, ok := survey.ParseRating(v); !ok {
			add(survey.RuleRange)
		}

	case survey.KindChoice:
		v := firstValue(raw)
		if v == "" {
			if f.Required {
				add(survey.RuleRequired)
			}
			break
		}
		if !f.HasOption(v) {
			add(survey.RuleOption)
		}

	default:
		if f.Required && firstValue(raw) == "" {
			add(survey.RuleRequired)
		}
	}
	return out
}
