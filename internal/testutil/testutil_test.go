package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.NotEmpty(t, root)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
}

func TestGetProjectRootValidated(t *testing.T) {
	root, err := GetProjectRootValidated()
	require.NoError(t, err)
	assert.True(t, DirExists(filepath.Join(root, "cmd")))

	assert.Error(t, ValidateProjectRoot(t.TempDir()))
}

func TestProjectPath(t *testing.T) {
	path, err := ProjectPath("internal", "testutil")
	require.NoError(t, err)
	assert.True(t, DirExists(path))
	assert.True(t, FileExists(filepath.Join(path, "testutil.go")))
}

func TestEnsureDir(t *testing.T) {
	testDir := filepath.Join(t.TempDir(), "test", "nested", "dir")

	require.NoError(t, EnsureDir(testDir))
	assert.True(t, DirExists(testDir))
	assert.False(t, DirExists(filepath.Join(testDir, "missing")))
}

func TestFileExists(t *testing.T) {
	assert.False(t, FileExists("/non/existent/file"))

	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
	assert.NotEmpty(t, ReadFile(t, filepath.Join(root, "go.mod")))
}
