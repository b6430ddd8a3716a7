package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(MustBuiltin())
	require.NoError(t, err)
	assert.Len(t, a, 64)

	b, err := Fingerprint(MustBuiltin())
	require.NoError(t, err)
	assert.Equal(t, a, b, "stable across builds")

	defs, err := CompileString(`
// comments and layout do not matter
survey: s: steps: [{name: "a", fields: [{name: "f", kind: "text"}]}]
`, "one.cue")
	require.NoError(t, err)
	same, err := CompileString(`survey: s: {
	steps: [{
		name: "a"
		fields: [{kind: "text", name: "f"}]
	}]
}`, "two.cue")
	require.NoError(t, err)

	fa, err := Fingerprint(defs[0])
	require.NoError(t, err)
	fb, err := Fingerprint(same[0])
	require.NoError(t, err)
	assert.Equal(t, fa, fb)

	changed := *defs[0]
	changed.Steps = append(changed.Steps[:0:0], changed.Steps...)
	changed.Steps[0].Name = "b"
	fc, err := Fingerprint(&changed)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fc)
}
