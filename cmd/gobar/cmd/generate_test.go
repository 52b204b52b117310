package cmd

import (
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/MeKo-Tech/gobar/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCommand(t *testing.T) {
	assert.True(t, strings.HasPrefix(generateCmd.Use, "generate"))
	for _, name := range []string{"mode", "output", "encoder", "verify", "normalize"} {
		assert.NotNil(t, generateCmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestGenerate_Base64ToStdout(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCommand(t, "generate", "123456")
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(stdout))
	require.NoError(t, err)
	testutil.RequireRasterSize(t, testutil.RequireImage(t, data))
}

func TestGenerate_BytesToStdout(t *testing.T) {
	isolate(t)

	stdout, _, err := executeCommand(t, "generate", "123456", "--mode", "bytes")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(stdout, "\xff\xd8"), "expected JPEG magic")
	testutil.RequireRasterSize(t, testutil.RequireImage(t, []byte(stdout)))
}

func TestGenerate_ImageDefaultPath(t *testing.T) {
	dir := isolate(t)

	stdout, _, err := executeCommand(t, "generate", "IMG-1", "--mode", "image")
	require.NoError(t, err)
	assert.Contains(t, stdout, "barcode.png")

	img, err := testutil.LoadImageFile(filepath.Join(dir, "barcode.png"))
	require.NoError(t, err)
	testutil.RequireRasterSize(t, img)
	assert.True(t, testutil.IsBlackAndWhite(img))
}

func TestGenerate_ToFile(t *testing.T) {
	tests := []struct {
		mode string
		file string
	}{
		{"image", "out/label.bmp"},
		{"image", "label.jpg"},
		{"bytes", "label.jpeg"},
		{"base64", "label.b64"},
	}

	for _, tt := range tests {
		t.Run(tt.mode+"_"+filepath.Base(tt.file), func(t *testing.T) {
			dir := isolate(t)

			_, _, err := executeCommand(t, "generate", "FILE-9", "--mode", tt.mode, "--output", tt.file)
			require.NoError(t, err)

			data := testutil.ReadFile(t, filepath.Join(dir, tt.file))
			if tt.mode == "base64" {
				data, err = base64.StdEncoding.DecodeString(string(data))
				require.NoError(t, err)
			}
			testutil.RequireRasterSize(t, testutil.RequireImage(t, data))
		})
	}
}

func TestGenerate_Verify(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"base64", []string{"generate", "VERIFY-1", "--verify"}},
		{"bytes", []string{"generate", "VERIFY-2", "--verify", "--mode", "bytes"}},
		{"boombuler", []string{"generate", "VERIFY-3", "--verify", "--encoder", "boombuler"}},
		{"normalized", []string{"generate", "ＡＢＣ１２３", "--verify", "--normalize"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)

			_, stderr, err := executeCommand(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, stderr, "Verified")
		})
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		encodingError bool
		contains      string
	}{
		{"empty text", []string{"generate", ""}, true, ""},
		{"emoji", []string{"generate", "😀"}, true, ""},
		{"unknown mode", []string{"generate", "1", "--mode", "svg"}, false, "unknown output mode"},
		{"unknown encoder", []string{"generate", "1", "--encoder", "nope"}, false, "nope"},
		{"missing text", []string{"generate"}, false, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)

			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			if tt.encodingError {
				var encErr *barcode.EncodingError
				assert.True(t, errors.As(err, &encErr), "want EncodingError, got %v", err)
			}
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestGenerate_UsesConfigFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "gobar.yaml"), `
generator:
  mode: image
output:
  dir: labels
  image_format: gif
`)

	_, _, err := executeCommand(t, "generate", "CFG-1")
	require.NoError(t, err)

	testutil.RequireRasterSize(t, testutil.RequireImage(t, testutil.ReadFile(t, filepath.Join(dir, "labels", "barcode.gif"))))
}
