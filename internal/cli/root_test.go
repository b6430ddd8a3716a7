package cli

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tally", cmd.Use)
	assert.Contains(t, cmd.Long, "dashboard")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"serve"},
		{"validate"},
		{"test"},
		{"dashboard"},
		{"link"},
		{"operator", "set-password"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("log-json"))
}

func TestDBFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{{"serve"}, {"dashboard"}, {"link"}, {"operator", "set-password"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err)
		assert.NotNil(t, sub.Flag("db"), "%v should accept --db", path)
	}
}

func TestInvalidFormat(t *testing.T) {
	res := runCLI(t, "", "--format", "xml", "validate", t.TempDir())
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, res.exitCode())
	assert.Contains(t, res.err.Error(), "invalid format")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(&RootOptions{}, &buf)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = newLogger(&RootOptions{Verbose: true}, &buf)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = newLogger(&RootOptions{LogJSON: true}, &buf)
	logger.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
