package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard_JSON(t *testing.T) {
	dir := isolate(t)
	db := filepath.Join(dir, "tally.db")
	seedStore(t, db,
		seedRecord{"s1", "yes", "transport_cost", "farmer"},
		seedRecord{"s2", "yes", "branding", ""},
		seedRecord{"s3", "no", "transport_cost", ""},
	)

	res := runCLI(t, "", "--format", "json", "dashboard", "--db", db)
	require.NoError(t, res.err, res.stderr)

	resp := decodeResponse(t, res.stdout)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, 3.0, data["total"])
	assert.Equal(t, 3.0, data["today"])

	interest := data["interest"].([]any)
	require.NotEmpty(t, interest)
	first := interest[0].(map[string]any)
	assert.Equal(t, "yes", first["category"])
	assert.Equal(t, 2.0, first["count"])
}

func TestDashboard_Text(t *testing.T) {
	dir := isolate(t)
	db := filepath.Join(dir, "tally.db")
	seedStore(t, db, seedRecord{"s1", "not_sure", "competition", ""})

	res := runCLI(t, "", "dashboard", "--db", db)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Submissions")
	assert.Contains(t, res.stdout, "Market obstacle")
	assert.Contains(t, res.stdout, "competition")
}

func TestDashboard_EmptyStore(t *testing.T) {
	dir := isolate(t)

	res := runCLI(t, "", "--format", "json", "dashboard", "--db", filepath.Join(dir, "empty.db"))
	require.NoError(t, res.err, res.stderr)
	data := decodeResponse(t, res.stdout).Data.(map[string]any)
	assert.Equal(t, 0.0, data["total"])
}

func TestDashboard_BadConfig(t *testing.T) {
	isolate(t)
	t.Setenv("TALLY_DASHBOARD_TIMEZONE", "Mars/Olympus")

	res := runCLI(t, "", "dashboard", "--db", "x.db")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, res.exitCode())
	assert.Contains(t, res.err.Error(), "invalid config")
}
