package cli

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_RequiresSecret(t *testing.T) {
	dir := isolate(t)

	res := runCLI(t, "", "serve", "--db", filepath.Join(dir, "tally.db"))
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, res.exitCode())
	assert.Contains(t, res.err.Error(), "auth.jwt_secret")
}

func TestServe_UnknownSurvey(t *testing.T) {
	dir := isolate(t)
	t.Setenv("TALLY_AUTH_JWT_SECRET", "serve-test-secret-0123")
	t.Setenv("TALLY_SURVEY_NAME", "pilot")

	res := runCLI(t, "", "serve", "--db", filepath.Join(dir, "tally.db"))
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, res.exitCode())
	assert.Contains(t, res.err.Error(), "failed to load survey")
}

func TestServe_StartsAndShutsDown(t *testing.T) {
	dir := isolate(t)
	t.Setenv("TALLY_AUTH_JWT_SECRET", "serve-test-secret-0123")

	ready := make(chan string, 1)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text"},
		Addr:        "127.0.0.1:0",
		DB:          filepath.Join(dir, "tally.db"),
		ready:       ready,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() { done <- runServe(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/api/v1/dashboard")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Post("http://"+addr+"/api/v1/surveys", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, time.Minute, sweepInterval(30*time.Minute))
	assert.Equal(t, 15*time.Second, sweepInterval(time.Minute))
	assert.Equal(t, time.Second, sweepInterval(time.Second))
}
