package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/survey"
)

func TestBuiltin(t *testing.T) {
	def, err := Builtin()
	require.NoError(t, err)

	assert.Equal(t, BuiltinName, def.Name)
	assert.Equal(t, 13, def.NumSteps())
	assert.Empty(t, Validate(def))

	// Cached
	again := MustBuiltin()
	assert.Same(t, def, again)
}

func TestBuiltin_Fields(t *testing.T) {
	def := MustBuiltin()

	f, step, ok := def.Field(survey.FieldInterest)
	require.True(t, ok)
	assert.Equal(t, 4, step)
	assert.Equal(t, survey.InterestCategories, f.Options)

	f, step, ok = def.Field(survey.FieldMarketObstacle)
	require.True(t, ok)
	assert.Equal(t, 5, step)
	assert.Equal(t, survey.MarketObstacleCategories, f.Options)

	f, step, ok = def.Field("business_size")
	require.True(t, ok)
	assert.Equal(t, 3, step)
	assert.True(t, f.Required)
	assert.Equal(t, survey.KindChoice, f.Kind)

	for _, name := range survey.RatingFields {
		f, _, ok := def.Field(name)
		require.True(t, ok, name)
		assert.Equal(t, survey.KindRating, f.Kind, name)
	}

	f, _, ok = def.Field("sales_channels")
	require.True(t, ok)
	assert.Equal(t, 3, f.MaxSelections)

	f, _, ok = def.Field("suggestions")
	require.True(t, ok)
	assert.False(t, f.Required)
}
