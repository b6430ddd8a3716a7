package survey

import "slices"

// FieldKind is the input kind of a questionnaire field.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindChoice FieldKind = "choice"
	KindRating FieldKind = "rating"
	KindMulti  FieldKind = "multi"
)

// Valid reports whether k is one of the known field kinds.
func (k FieldKind) Valid() bool {
	switch k {
	case KindText, KindChoice, KindRating, KindMulti:
		return true
	}
	return false
}

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// Field is one question of a step.
type Field struct {
	Name     string    `json:"name"`
	Label    string    `json:"label,omitempty"`
	Kind     FieldKind `json:"kind"`
	Required bool      `json:"required,omitempty"`
	Options  []string  `json:"options,omitempty"`

	// MaxSelections caps a multi-select group. Zero disables the cap.
	MaxSelections int `json:"max_selections,omitempty"`
}

// HasOption reports whether v is one of the field's declared options.
func (f Field) HasOption(v string) bool {
	return slices.Contains(f.Options, v)
}

// Step is one page of the wizard.
type Step struct {
	Name   string  `json:"name"`
	Title  string  `json:"title,omitempty"`
	Fields []Field `json:"fields"`
}

// Definition is an ordered questionnaire.
type Definition struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
	Steps []Step `json:"steps"`
}

// NumSteps returns the number of wizard steps.
func (d *Definition) NumSteps() int {
	return len(d.Steps)
}

// Step returns step i, or false when i is out of range.
func (d *Definition) Step(i int) (Step, bool) {
	if i < 0 || i >= len(d.Steps) {
		return Step{}, false
	}
	return d.Steps[i], true
}

// Field looks up a field by name across all steps and returns the index of
// the step that owns it.
func (d *Definition) Field(name string) (Field, int, bool) {
	for i, step := range d.Steps {
		for _, f := range step.Fields {
			if f.Name == name {
				return f, i, true
			}
		}
	}
	return Field{}, -1, false
}

// FieldNames returns every field name in declaration order.
func (d *Definition) FieldNames() []string {
	var names []string
	for _, step := range d.Steps {
		for _, f := range step.Fields {
			names = append(names, f.Name)
		}
	}
	return names
}
