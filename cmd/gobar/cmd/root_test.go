package cmd

import (
	"strings"
	"testing"

	"github.com/MeKo-Tech/gobar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "gobar", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Same(t, rootCmd, GetRootCommand())
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCommand(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Code 128")
	assert.Contains(t, stdout, "Available Commands:")
	assert.Contains(t, stdout, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "gobar version dev"))
}

func TestRootCommandSubcommands(t *testing.T) {
	var names []string
	for _, sub := range rootCmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"generate", "batch", "serve", "config"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)

	_, _, err := executeCommand(t, "--no-such-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRootCommandMissingConfigFile(t *testing.T) {
	isolate(t)

	_, _, err := executeCommand(t, "--config", "missing.yaml", "generate", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestRootCommandLogsToStderr(t *testing.T) {
	isolate(t)

	stdout, stderr, err := executeCommand(t, "--log-level", "debug", "generate", "LOG-1")
	require.NoError(t, err)

	assert.Contains(t, stderr, `"msg":"Generating barcode"`)
	assert.NotContains(t, stdout, "Generating barcode")
	assert.Equal(t, 1, strings.Count(stdout, "\n"))
}

func TestRootCommandLogFile(t *testing.T) {
	dir := isolate(t)

	_, _, err := executeCommand(t, "--verbose", "--log-file", "gobar.log", "generate", "LOG-2")
	require.NoError(t, err)

	data := testutil.ReadFile(t, dir+"/gobar.log")
	assert.Contains(t, string(data), `"level":"DEBUG"`)
}
