package compiler

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/tally/internal/survey"
)

// Validation error codes (E200-E299)
const (
	// Definition errors (E200-E209)
	ErrNoSteps        = "E200" // at least one step required
	ErrEmptyStep      = "E201" // step has no fields
	ErrEmptyName      = "E202" // step or field name is empty
	ErrDuplicateField = "E203" // field name used twice
	ErrDuplicateStep  = "E204" // step name used twice
	ErrReservedName   = "E205" // field name collides with submission metadata
	ErrInvalidName    = "E206" // field name is not a lower_snake identifier

	// Field errors (E210-E219)
	ErrInvalidKind      = "E210" // unknown field kind
	ErrMissingOptions   = "E211" // choice/multi without options
	ErrRatingOptions    = "E212" // rating declares options
	ErrMaxSelections    = "E213" // negative cap, or cap on a non-multi field
	ErrDuplicateOption  = "E214" // option listed twice
	ErrUnexpectedOption = "E215" // text field declares options

	// Discriminator errors (E220-E229)
	ErrMissingDiscriminator = "E220" // interest / market_obstacle absent
	ErrDiscriminatorKind    = "E221" // discriminator is not a required choice
	ErrDiscriminatorOptions = "E222" // discriminator options differ from the canonical categories
)

var fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidationError represents a definition validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled definition against structural rules.
// Returns all errors found (does not fail-fast).
func Validate(def *survey.Definition) []ValidationError {
	var errs []ValidationError

	// E200: at least one step
	if len(def.Steps) == 0 {
		return []ValidationError{{
			Field:   "steps",
			Message: "at least one step is required",
			Code:    ErrNoSteps,
		}}
	}

	stepNames := make(map[string]bool)
	fieldNames := make(map[string]bool)

	for i, step := range def.Steps {
		stepPath := fmt.Sprintf("steps[%d]", i)

		if strings.TrimSpace(step.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   stepPath + ".name",
				Message: "step name is required",
				Code:    ErrEmptyName,
			})
		} else if stepNames[step.Name] {
			errs = append(errs, ValidationError{
				Field:   stepPath + ".name",
				Message: fmt.Sprintf("duplicate step name: %q", step.Name),
				Code:    ErrDuplicateStep,
			})
		}
		stepNames[step.Name] = true

		if len(step.Fields) == 0 {
			errs = append(errs, ValidationError{
				Field:   stepPath + ".fields",
				Message: fmt.Sprintf("step %q must have at least one field", step.Name),
				Code:    ErrEmptyStep,
			})
		}

		for j, f := range step.Fields {
			path := fmt.Sprintf("%s.fields[%d]", stepPath, j)
			errs = append(errs, validateField(f, path, fieldNames)...)
			fieldNames[f.Name] = true
		}
	}

	errs = append(errs, validateDiscriminator(def, survey.FieldInterest, survey.InterestCategories)...)
	errs = append(errs, validateDiscriminator(def, survey.FieldMarketObstacle, survey.MarketObstacleCategories)...)

	return errs
}

func validateField(f survey.Field, path string, seen map[string]bool) []ValidationError {
	var errs []ValidationError

	switch {
	case f.Name == "":
		errs = append(errs, ValidationError{
			Field:   path + ".name",
			Message: "field name is required",
			Code:    ErrEmptyName,
		})
	case survey.IsReserved(f.Name):
		errs = append(errs, ValidationError{
			Field:   path + ".name",
			Message: fmt.Sprintf("field name %q is reserved for submission metadata", f.Name),
			Code:    ErrReservedName,
		})
	case !fieldNamePattern.MatchString(f.Name):
		errs = append(errs, ValidationError{
			Field:   path + ".name",
			Message: fmt.Sprintf("field name %q must match %s", f.Name, fieldNamePattern),
			Code:    ErrInvalidName,
		})
	case seen[f.Name]:
		errs = append(errs, ValidationError{
			Field:   path + ".name",
			Message: fmt.Sprintf("duplicate field name: %q", f.Name),
			Code:    ErrDuplicateField,
		})
	}

	if !f.Kind.Valid() {
		errs = append(errs, ValidationError{
			Field:   path + ".kind",
			Message: fmt.Sprintf("invalid kind %q (must be text, choice, rating or multi)", f.Kind),
			Code:    ErrInvalidKind,
		})
		return errs
	}

	switch f.Kind {
	case survey.KindChoice, survey.KindMulti:
		if len(f.Options) == 0 {
			errs = append(errs, ValidationError{
				Field:   path + ".options",
				Message: fmt.Sprintf("%s field %q must declare options", f.Kind, f.Name),
				Code:    ErrMissingOptions,
			})
		}
	case survey.KindRating:
		if len(f.Options) > 0 {
			errs = append(errs, ValidationError{
				Field:   path + ".options",
				Message: fmt.Sprintf("rating field %q takes %d-%d and must not declare options", f.Name, survey.MinRating, survey.MaxRating),
				Code:    ErrRatingOptions,
			})
		}
	case survey.KindText:
		if len(f.Options) > 0 {
			errs = append(errs, ValidationError{
				Field:   path + ".options",
				Message: fmt.Sprintf("text field %q must not declare options", f.Name),
				Code:    ErrUnexpectedOption,
			})
		}
	}

	seenOpts := make(map[string]bool, len(f.Options))
	for k, opt := range f.Options {
		if seenOpts[opt] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.options[%d]", path, k),
				Message: fmt.Sprintf("duplicate option: %q", opt),
				Code:    ErrDuplicateOption,
			})
		}
		seenOpts[opt] = true
	}

	if f.MaxSelections < 0 {
		errs = append(errs, ValidationError{
			Field:   path + ".max_selections",
			Message: "max_selections must not be negative",
			Code:    ErrMaxSelections,
		})
	} else if f.MaxSelections > 0 && f.Kind != survey.KindMulti {
		errs = append(errs, ValidationError{
			Field:   path + ".max_selections",
			Message: fmt.Sprintf("max_selections only applies to multi fields, %q is %s", f.Name, f.Kind),
			Code:    ErrMaxSelections,
		})
	}

	return errs
}

// validateDiscriminator checks that a matching discriminator is a required
// choice over exactly the canonical categories.
func validateDiscriminator(def *survey.Definition, name string, categories []string) []ValidationError {
	f, _, ok := def.Field(name)
	if !ok {
		return []ValidationError{{
			Field:   name,
			Message: fmt.Sprintf("discriminator field %q is required for contact matching", name),
			Code:    ErrMissingDiscriminator,
		}}
	}

	var errs []ValidationError
	if f.Kind != survey.KindChoice || !f.Required {
		errs = append(errs, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("discriminator field %q must be a required choice", name),
			Code:    ErrDiscriminatorKind,
		})
	}

	got := slices.Sorted(slices.Values(f.Options))
	want := slices.Sorted(slices.Values(categories))
	if !slices.Equal(got, want) {
		errs = append(errs, ValidationError{
			Field:   name + ".options",
			Message: fmt.Sprintf("discriminator field %q must offer exactly %s", name, strings.Join(categories, ", ")),
			Code:    ErrDiscriminatorOptions,
		})
	}
	return errs
}
