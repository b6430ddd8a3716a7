package survey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDefinition() *Definition {
	return &Definition{
		Name: "mini",
		Steps: []Step{
			{Name: "about", Fields: []Field{
				{Name: "business_type", Kind: KindChoice, Required: true, Options: []string{"farm", "coop"}},
			}},
			{Name: "market", Fields: []Field{
				{Name: "interest", Kind: KindChoice, Required: true, Options: InterestCategories},
				{Name: "notes", Kind: KindText},
			}},
		},
	}
}

func TestDefinitionLookup(t *testing.T) {
	def := testDefinition()

	assert.Equal(t, 2, def.NumSteps())

	f, step, ok := def.Field("notes")
	assert.True(t, ok)
	assert.Equal(t, 1, step)
	assert.Equal(t, KindText, f.Kind)

	_, step, ok = def.Field("missing")
	assert.False(t, ok)
	assert.Equal(t, -1, step)

	_, ok = def.Step(2)
	assert.False(t, ok)

	assert.Equal(t, []string{"business_type", "interest", "notes"}, def.FieldNames())
}

func TestFieldHasOption(t *testing.T) {
	f := Field{Options: []string{"yes", "no"}}
	assert.True(t, f.HasOption("yes"))
	assert.False(t, f.HasOption("maybe"))
}

func TestFieldKindValid(t *testing.T) {
	assert.True(t, KindMulti.Valid())
	assert.False(t, FieldKind("slider").Valid())
}
