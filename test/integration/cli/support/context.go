package support

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/gobar/internal/server"
	"github.com/gorilla/websocket"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand string
	LastStdout  string
	LastStderr  string
	LastError   error

	// Test environment
	TempDir     string
	originalDir string
	originalEnv map[string]*string

	// Server state
	HTTPServer *httptest.Server
	Server     *server.Server

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPBody       []byte
	LastHTTPHeaders    map[string]string

	// WebSocket state
	WSConn     *websocket.Conn
	WSMessages []server.WebSocketMessage
}

// NewTestContext creates a scenario context rooted in a fresh temporary
// directory. HOME and XDG_CONFIG_HOME point into it so no user config file
// leaks into a scenario.
func NewTestContext() (*TestContext, error) {
	originalDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "gobar-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	ctx := &TestContext{
		TempDir:     tempDir,
		originalDir: originalDir,
		originalEnv: map[string]*string{},
	}

	for name, value := range map[string]string{
		"HOME":            tempDir,
		"XDG_CONFIG_HOME": filepath.Join(tempDir, ".config"),
	} {
		if err := ctx.SetEnv(name, value); err != nil {
			_ = os.RemoveAll(tempDir)
			return nil, err
		}
	}

	if err := os.Chdir(tempDir); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to enter temp directory: %w", err)
	}
	return ctx, nil
}

// SetEnv sets an environment variable for the rest of the scenario.
func (testCtx *TestContext) SetEnv(name, value string) error {
	if _, seen := testCtx.originalEnv[name]; !seen {
		if prev, ok := os.LookupEnv(name); ok {
			testCtx.originalEnv[name] = &prev
		} else {
			testCtx.originalEnv[name] = nil
		}
	}
	return os.Setenv(name, value)
}

// Path resolves name relative to the scenario directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// Cleanup stops the server, restores the environment and removes the
// scenario directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if err := testCtx.StopServer(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}

	for name, value := range testCtx.originalEnv {
		var err error
		if value == nil {
			err = os.Unsetenv(name)
		} else {
			err = os.Setenv(name, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %s: %w", name, err))
		}
	}

	if err := os.Chdir(testCtx.originalDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to restore working directory: %w", err))
	}

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	return errors.Join(errs...)
}
