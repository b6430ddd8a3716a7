package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ResolvesSurveyDir(t *testing.T) {
	scenario := loadTestScenario(t, "wizard_submit")
	assert.Equal(t, filepath.Join("testdata", "surveys"), scenario.Survey)
	assert.Len(t, scenario.Flow, 7)
	assert.Len(t, scenario.Assertions, 3)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown key",
			content: "name: x\ndescription: y\nflow: [{op: start, session: a}]\nasertions: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			content: "description: y\nflow: [{op: start, session: a}]\n",
			wantErr: "name is required",
		},
		{
			name:    "empty flow",
			content: "name: x\ndescription: y\nflow: []\n",
			wantErr: "flow list is required",
		},
		{
			name:    "unknown op",
			content: "name: x\ndescription: y\nflow: [{op: jump}]\n",
			wantErr: `unknown op "jump"`,
		},
		{
			name:    "session used before start",
			content: "name: x\ndescription: y\nflow: [{op: advance, session: a}]\n",
			wantErr: `session "a" used before start`,
		},
		{
			name:    "session started twice",
			content: "name: x\ndescription: y\nflow: [{op: start, session: a}, {op: start, session: a}]\n",
			wantErr: "already started",
		},
		{
			name:    "link without submission",
			content: "name: x\ndescription: y\nflow: [{op: link, contact: {fullName: a}}]\n",
			wantErr: "submission is required",
		},
		{
			name:    "bad duration",
			content: "name: x\ndescription: y\nflow: [{op: wait, duration: soon}]\n",
			wantErr: "invalid duration",
		},
		{
			name:    "missing survey dir",
			content: "name: x\ndescription: y\nsurvey: nowhere\nflow: [{op: start, session: a}]\n",
			wantErr: "survey directory not found",
		},
		{
			name:    "unknown assertion",
			content: "name: x\ndescription: y\nflow: [{op: start, session: a}]\nassertions: [{type: trace_contains}]\n",
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name:    "submission assertion without expect",
			content: "name: x\ndescription: y\nflow: [{op: start, session: a}]\nassertions: [{type: submission, survey_id: s}]\n",
			wantErr: "expect is required for submission",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
