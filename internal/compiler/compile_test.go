package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/survey"
)

func TestCompileString_Definition(t *testing.T) {
	src := `
survey: quick: {
	title: "Quick"
	steps: [{
		name: "first"
		title: "First page"
		fields: [{
			name: "interest"
			label: "Interested?"
			kind: "choice"
			required: true
			options: ["yes", "no", "not_sure"]
		}, {
			name: "tags"
			kind: "multi"
			max_selections: 2
			options: ["a", "b", "c"]
		}]
	}, {
		name: "second"
		fields: [{name: "score", kind: "rating", required: true}]
	}]
}
`
	defs, err := CompileString(src, "quick.cue")
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "quick", def.Name)
	assert.Equal(t, "Quick", def.Title)
	require.Equal(t, 2, def.NumSteps())

	first := def.Steps[0]
	assert.Equal(t, "first", first.Name)
	assert.Equal(t, "First page", first.Title)
	require.Len(t, first.Fields, 2)
	assert.Equal(t, survey.Field{
		Name:     "interest",
		Label:    "Interested?",
		Kind:     survey.KindChoice,
		Required: true,
		Options:  []string{"yes", "no", "not_sure"},
	}, first.Fields[0])
	assert.Equal(t, survey.KindMulti, first.Fields[1].Kind)
	assert.False(t, first.Fields[1].Required)
	assert.Equal(t, 2, first.Fields[1].MaxSelections)

	score := def.Steps[1].Fields[0]
	assert.Equal(t, survey.KindRating, score.Kind)
	assert.True(t, score.Required)
	assert.Empty(t, score.Options)
	assert.Zero(t, score.MaxSelections)
}

func TestCompileString_MissingSteps(t *testing.T) {
	_, err := CompileString(`survey: empty: {title: "x"}`, "empty.cue")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "steps", ce.Field)
}

func TestCompileString_MissingFieldKind(t *testing.T) {
	src := `survey: s: steps: [{name: "a", fields: [{name: "f"}]}]`
	_, err := CompileString(src, "s.cue")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "steps[0].fields[0].kind", ce.Field)
}

func TestCompileString_NoSurveys(t *testing.T) {
	_, err := CompileString(`other: 1`, "other.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no survey definitions")
}

func TestCompileString_SyntaxErrorHasPosition(t *testing.T) {
	_, err := CompileString("survey: x: {\n\tsteps: [\n", "broken.cue")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestCompileString_WrongType(t *testing.T) {
	src := `survey: s: steps: [{name: "a", fields: [{name: "f", kind: "text", required: "yes"}]}]`
	_, err := CompileString(src, "s.cue")
	require.Error(t, err)
}

func TestLoadDir_SortedByName(t *testing.T) {
	defs, err := LoadDir("testdata/valid")
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "market", defs[1].Name)

	market, ok := Find(defs, "market")
	require.True(t, ok)
	assert.Equal(t, 2, market.NumSteps())
	assert.Empty(t, Validate(market))

	_, ok = Find(defs, "missing")
	assert.False(t, ok)
}

func TestLoadDir_Errors(t *testing.T) {
	_, err := LoadDir("testdata/does-not-exist")
	require.Error(t, err)

	defs, err := LoadDir("testdata/broken")
	require.NoError(t, err, "kind is a plain string until validation")
	require.Len(t, defs, 1)

	errs := Validate(defs[0])
	codes := make([]string, 0, len(errs))
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, ErrInvalidKind)
	assert.Contains(t, codes, ErrMissingDiscriminator)
}

func TestLoadDefinition(t *testing.T) {
	def, err := LoadDefinition("", "")
	require.NoError(t, err)
	assert.Equal(t, BuiltinName, def.Name)

	def, err = LoadDefinition("testdata/valid", "market")
	require.NoError(t, err)
	assert.Equal(t, "market", def.Name)
	assert.Equal(t, 2, def.NumSteps())

	tests := []struct {
		name    string
		dir     string
		survey  string
		wantErr string
	}{
		{"several without name", "testdata/valid", "", "defines 2 surveys"},
		{"unknown name", "testdata/valid", "nope", `"nope" not found`},
		{"fails validation", "testdata/valid", "alpha", "E220"},
		{"name without dir", "", "market", "no survey directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDefinition(tt.dir, tt.survey)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
