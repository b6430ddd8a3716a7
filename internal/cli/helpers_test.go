package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/survey"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func (r cliResult) exitCode() int {
	return GetExitCode(r.err)
}

// runCLI executes the root command with args and stdin.
func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// isolate moves the test into an empty directory so no tally.yaml is
// picked up, and returns it.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func absPath(t *testing.T, rel string) string {
	t.Helper()
	p, err := filepath.Abs(rel)
	require.NoError(t, err)
	return p
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

type seedRecord struct {
	surveyID     string
	interest     string
	obstacle     string
	businessType string
}

// seedStore writes submissions into a sqlite file and returns them in
// insert order.
func seedStore(t *testing.T, path string, records ...seedRecord) []survey.Submission {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	out := make([]survey.Submission, 0, len(records))
	for _, r := range records {
		answers := survey.Answers{
			survey.FieldInterest:       survey.Text(r.interest),
			survey.FieldMarketObstacle: survey.Text(r.obstacle),
		}
		if r.businessType != "" {
			answers[survey.FieldBusinessType] = survey.Text(r.businessType)
		}
		sub, err := st.InsertSubmission(context.Background(), survey.Submission{
			SurveyID: r.surveyID,
			Answers:  answers,
		})
		require.NoError(t, err)
		out = append(out, sub)
	}
	return out
}

func openTestStore(t *testing.T, path string) *store.Store {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}
