package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/MeKo-Tech/gobar/internal/config"
	"github.com/MeKo-Tech/gobar/internal/generator"
	"github.com/MeKo-Tech/gobar/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchCommand(t *testing.T) {
	assert.True(t, strings.HasPrefix(batchCmd.Use, "batch"))
	for _, name := range []string{"output-dir", "mode", "workers", "encoder", "continue-on-error", "progress", "stats"} {
		assert.NotNil(t, batchCmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestBatch_WritesOneFilePerLine(t *testing.T) {
	dir := isolate(t)
	input := writeFile(t, filepath.Join(dir, "labels.txt"), "A-1\n\nA-2\r\nA-3\n")

	stdout, _, err := executeCommand(t, "batch", input, "--output-dir", "out", "--mode", "bytes", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Generated 3/3 barcodes")

	for _, name := range []string{"0001.jpg", "0002.jpg", "0003.jpg"} {
		testutil.RequireRasterSize(t, testutil.RequireImage(t, testutil.ReadFile(t, filepath.Join(dir, "out", name))))
	}
	_, err = os.Stat(filepath.Join(dir, "out", "0004.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestBatch_FromStdin(t *testing.T) {
	dir := isolate(t)

	_, _, err := executeCommandWithInput(t, strings.NewReader("IN-1\nIN-2\n"),
		"batch", "-", "--output-dir", "out", "--mode", "image")
	require.NoError(t, err)

	testutil.RequireRasterSize(t, testutil.RequireImage(t, testutil.ReadFile(t, filepath.Join(dir, "out", "0001.png"))))
	testutil.RequireRasterSize(t, testutil.RequireImage(t, testutil.ReadFile(t, filepath.Join(dir, "out", "0002.png"))))
}

func TestBatch_ContinueOnError(t *testing.T) {
	dir := isolate(t)
	input := testutil.WriteLines(t, dir, "labels.txt", []string{"OK-1", "😀", "OK-3"})

	stdout, _, err := executeCommand(t, "batch", input, "--output-dir", "out")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Skipped line 2")
	assert.Contains(t, stdout, "Generated 2/3 barcodes")

	assert.FileExists(t, filepath.Join(dir, "out", "0001.b64"))
	assert.NoFileExists(t, filepath.Join(dir, "out", "0002.b64"))
	assert.FileExists(t, filepath.Join(dir, "out", "0003.b64"))
}

func TestBatch_StopOnError(t *testing.T) {
	dir := isolate(t)
	input := testutil.WriteLines(t, dir, "labels.txt", []string{"OK-1", "😀", "OK-3"})

	_, _, err := executeCommand(t, "batch", input, "--output-dir", "out", "--continue-on-error=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 2")

	assert.FileExists(t, filepath.Join(dir, "out", "0001.b64"))
	assert.NoFileExists(t, filepath.Join(dir, "out", "0003.b64"))
}

func TestBatch_Stats(t *testing.T) {
	dir := isolate(t)
	input := testutil.WriteLines(t, dir, "labels.txt", []string{"S-1", "S-2"})

	stdout, stderr, err := executeCommand(t, "batch", input, "--output-dir", "out", "--stats", "--progress")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Generating: ")

	var stats generator.BatchStats
	require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 4, stats.Workers)
}

func TestBatch_Errors(t *testing.T) {
	dir := isolate(t)
	empty := writeFile(t, filepath.Join(dir, "empty.txt"), "\n  \n")

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{"missing file", []string{"batch", "nope.txt"}, "failed to open input"},
		{"no lines", []string{"batch", empty}, "no input lines"},
		{"zero workers", []string{"batch", empty, "--workers", "0"}, "workers must be at least 1"},
		{"bad mode", []string{"batch", empty, "--mode", "svg"}, "unknown output mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestConfigToBatchOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generator.Mode = "image"
	cfg.Output.Dir = "from-config"
	cfg.Batch.Workers = 3
	cfg.Batch.ContinueOnError = false

	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(batchCmd.Flags())
	t.Cleanup(func() { resetFlags(batchCmd) })

	opts, err := configToBatchOptions(&cfg, cmd)
	require.NoError(t, err)
	assert.Equal(t, "from-config", opts.OutputDir)
	assert.Equal(t, barcode.ModeImage, opts.Mode)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, 3, opts.Generator.Workers)
	assert.False(t, opts.ContinueOnError)

	require.NoError(t, cmd.Flags().Parse([]string{"--workers", "6", "--mode", "bytes", "--output-dir", "flag-dir"}))
	opts, err = configToBatchOptions(&cfg, cmd)
	require.NoError(t, err)
	assert.Equal(t, "flag-dir", opts.OutputDir)
	assert.Equal(t, barcode.ModeBytes, opts.Mode)
	assert.Equal(t, 6, opts.Workers)
}

func TestArtifactExt(t *testing.T) {
	assert.Equal(t, ".png", artifactExt(barcode.ModeImage, ""))
	assert.Equal(t, ".tiff", artifactExt(barcode.ModeImage, "tiff"))
	assert.Equal(t, ".jpg", artifactExt(barcode.ModeBytes, "png"))
	assert.Equal(t, ".b64", artifactExt(barcode.ModeBase64, "png"))
}
