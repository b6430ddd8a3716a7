// Package compiler turns CUE questionnaire definitions into
// survey.Definition values and checks them for structural problems.
//
// A questionnaire lives under the top-level "survey" struct, keyed by name:
//
//	survey: producer: {
//		title: "..."
//		steps: [{name: "interest", fields: [{name: "interest", kind: "choice", ...}]}]
//	}
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tally/internal/survey"
)

// CompileSurvey parses one questionnaire struct into a Definition.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	def, err := CompileSurvey(v.LookupPath(cue.ParsePath("survey.producer")))
func CompileSurvey(v cue.Value) (*survey.Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &survey.Definition{}

	// Questionnaire name is the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].String()
	}

	title, err := optionalString(v, "title")
	if err != nil {
		return nil, err
	}
	def.Title = title

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if !stepsVal.Exists() {
		return nil, &CompileError{
			Field:   "steps",
			Message: "steps is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := stepsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		step, err := parseStep(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		def.Steps = append(def.Steps, step)
	}

	return def, nil
}

func parseStep(v cue.Value, index int) (survey.Step, error) {
	var step survey.Step

	name, err := requiredString(v, "name", fmt.Sprintf("steps[%d].name", index))
	if err != nil {
		return step, err
	}
	step.Name = name

	if step.Title, err = optionalString(v, "title"); err != nil {
		return step, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return step, &CompileError{
			Field:   fmt.Sprintf("steps[%d].fields", index),
			Message: "fields is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := fieldsVal.List()
	if err != nil {
		return step, formatCUEError(err)
	}
	for j := 0; iter.Next(); j++ {
		f, err := parseField(iter.Value(), fmt.Sprintf("steps[%d].fields[%d]", index, j))
		if err != nil {
			return step, err
		}
		step.Fields = append(step.Fields, f)
	}
	return step, nil
}

func parseField(v cue.Value, path string) (survey.Field, error) {
	var f survey.Field
	var err error

	if f.Name, err = requiredString(v, "name", path+".name"); err != nil {
		return f, err
	}
	if f.Label, err = optionalString(v, "label"); err != nil {
		return f, err
	}

	kind, err := requiredString(v, "kind", path+".kind")
	if err != nil {
		return f, err
	}
	f.Kind = survey.FieldKind(kind)

	if f.Required, err = optionalBool(v, "required"); err != nil {
		return f, err
	}

	optsVal := v.LookupPath(cue.ParsePath("options"))
	if optsVal.Exists() && optsVal.IsConcrete() {
		iter, err := optsVal.List()
		if err != nil {
			return f, formatCUEError(err)
		}
		for iter.Next() {
			opt, err := iter.Value().String()
			if err != nil {
				return f, formatCUEError(err)
			}
			f.Options = append(f.Options, opt)
		}
	}

	maxVal := concrete(v.LookupPath(cue.ParsePath("max_selections")))
	if maxVal.Exists() {
		n, err := maxVal.Int64()
		if err != nil {
			return f, formatCUEError(err)
		}
		f.MaxSelections = int(n)
	}

	return f, nil
}

// concrete resolves defaults and returns a non-existent value for fields
// that are absent or not concrete (an unset optional field).
func concrete(v cue.Value) cue.Value {
	if !v.Exists() {
		return v
	}
	if d, ok := v.Default(); ok {
		v = d
	}
	if !v.IsConcrete() {
		return cue.Value{}
	}
	return v
}

func requiredString(v cue.Value, name, field string) (string, error) {
	val := concrete(v.LookupPath(cue.ParsePath(name)))
	if !val.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	val := concrete(v.LookupPath(cue.ParsePath(name)))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, name string) (bool, error) {
	val := concrete(v.LookupPath(cue.ParsePath(name)))
	if !val.Exists() {
		return false, nil
	}
	b, err := val.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
