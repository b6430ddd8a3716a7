package compiler

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/tally/internal/survey"
)

// LoadDir loads every questionnaire under the "survey" struct of the CUE
// package in dir. Definitions are returned sorted by name.
func LoadDir(dir string) ([]*survey.Definition, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("survey directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("survey directory: not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", formatCUEError(inst.Err))
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}
	return compileAll(value)
}

// CompileString compiles CUE source holding one or more questionnaires.
func CompileString(src, filename string) ([]*survey.Definition, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileAll(value)
}

func compileAll(value cue.Value) ([]*survey.Definition, error) {
	surveys := value.LookupPath(cue.ParsePath("survey"))
	if !surveys.Exists() {
		return nil, &CompileError{Field: "survey", Message: "no survey definitions found"}
	}

	iter, err := surveys.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []*survey.Definition
	for iter.Next() {
		def, err := CompileSurvey(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("survey.%s: %w", iter.Selector(), err)
		}
		if def.Name == "" {
			def.Name = iter.Selector().String()
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, &CompileError{Field: "survey", Message: "no survey definitions found", Pos: surveys.Pos()}
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// Find returns the definition with the given name.
func Find(defs []*survey.Definition, name string) (*survey.Definition, bool) {
	for _, d := range defs {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// LoadDefinition returns the questionnaire a server or scenario runs.
// An empty dir selects the built-in questionnaire. Otherwise name picks a
// definition from dir; it may be empty when dir holds exactly one. The
// result has passed Validate.
func LoadDefinition(dir, name string) (*survey.Definition, error) {
	if dir == "" {
		if name != "" && name != BuiltinName {
			return nil, fmt.Errorf("survey %q: no survey directory configured", name)
		}
		return Builtin()
	}

	defs, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}

	var def *survey.Definition
	switch {
	case name != "":
		d, ok := Find(defs, name)
		if !ok {
			return nil, fmt.Errorf("survey %q not found in %s", name, dir)
		}
		def = d
	case len(defs) == 1:
		def = defs[0]
	default:
		return nil, fmt.Errorf("%s defines %d surveys; pick one by name", dir, len(defs))
	}

	if errs := Validate(def); len(errs) > 0 {
		return nil, fmt.Errorf("survey %s: %w", def.Name, errors.Join(asErrors(errs)...))
	}
	return def, nil
}

func asErrors(errs []ValidationError) []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}
