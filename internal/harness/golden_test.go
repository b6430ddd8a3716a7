package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceJSON_Canonical(t *testing.T) {
	result := NewResult()
	result.addTrace(OpWait, "", map[string]any{"duration": "1s"}, map[string]any{"now": "x"})
	result.addTrace(OpStart, "a", nil, map[string]any{"step": 0})

	data, err := TraceJSON("tiny", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"tiny","trace":[`+
			`{"args":{"duration":"1s"},"op":"wait","result":{"now":"x"},"seq":1},`+
			`{"op":"start","result":{"step":0},"seq":2,"session":"a"}]}`,
		string(data))
}

func TestCompareGolden(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "golden")
	result := NewResult()
	result.addTrace(OpStart, "a", nil, map[string]any{"step": 0})

	// Missing golden file passes.
	require.NoError(t, CompareGolden(dir, "cmp", result, false))

	require.NoError(t, CompareGolden(dir, "cmp", result, true))
	_, err := os.Stat(filepath.Join(dir, "cmp"+GoldenSuffix))
	require.NoError(t, err)
	require.NoError(t, CompareGolden(dir, "cmp", result, false))

	result.addTrace(OpAdvance, "a", nil, map[string]any{"step": 1})
	err = CompareGolden(dir, "cmp", result, false)
	assert.ErrorIs(t, err, ErrGoldenMismatch)
}
