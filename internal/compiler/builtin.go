package compiler

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/roach88/tally/internal/survey"
)

// BuiltinName is the name of the embedded questionnaire.
const BuiltinName = "producer"

//go:embed builtin/producer.cue
var builtinSource string

var (
	builtinOnce sync.Once
	builtinDef  *survey.Definition
	builtinErr  error
)

// Builtin returns the embedded 13-step producer market questionnaire.
// The result is shared; callers must not mutate it.
func Builtin() (*survey.Definition, error) {
	builtinOnce.Do(func() {
		defs, err := CompileString(builtinSource, "producer.cue")
		if err != nil {
			builtinErr = fmt.Errorf("builtin questionnaire: %w", err)
			return
		}
		def, ok := Find(defs, BuiltinName)
		if !ok {
			builtinErr = fmt.Errorf("builtin questionnaire: %q not defined", BuiltinName)
			return
		}
		if errs := Validate(def); len(errs) > 0 {
			builtinErr = fmt.Errorf("builtin questionnaire: %w", errs[0])
			return
		}
		builtinDef = def
	})
	return builtinDef, builtinErr
}

// MustBuiltin is Builtin for tests and static wiring.
func MustBuiltin() *survey.Definition {
	def, err := Builtin()
	if err != nil {
		panic(err)
	}
	return def
}
