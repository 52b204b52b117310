package support

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/gobar/cmd/gobar/cmd"
	"github.com/MeKo-Tech/gobar/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// iRunCommand executes a gobar command line in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	return testCtx.run(command, nil)
}

// iRunCommandWithInput executes a command line with the doc string as stdin.
func (testCtx *TestContext) iRunCommandWithInput(command string, input *godog.DocString) error {
	return testCtx.run(command, strings.NewReader(input.Content))
}

func (testCtx *TestContext) run(command string, in io.Reader) error {
	args, err := splitArgs(command)
	if err != nil {
		return err
	}
	if len(args) > 0 && args[0] == "gobar" {
		args = args[1:]
	}

	root := cmd.GetRootCommand()
	resetFlags(root)
	defer func() {
		resetFlags(root)
		root.SetOut(nil)
		root.SetErr(nil)
		root.SetIn(nil)
		root.SetArgs(nil)
	}()

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(in)
	root.SetArgs(args)

	testCtx.LastCommand = command
	testCtx.LastError = root.Execute()
	testCtx.LastStdout = stdout.String()
	testCtx.LastStderr = stderr.String()
	return nil
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// between executions of the same command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// splitArgs splits a command line on whitespace, keeping single- or
// double-quoted runs together.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)
	for _, r := range line {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}

// theCommandShouldSucceed verifies the last command returned no error.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed: %w\nstderr: %s", testCtx.LastCommand, testCtx.LastError, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the last command returned an error.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded, expected failure\nstdout: %s", testCtx.LastCommand, testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastStdout, expected) {
		return fmt.Errorf("output does not contain %q\noutput: %s", expected, testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theErrorOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastStderr, expected) {
		return fmt.Errorf("error output does not contain %q\nstderr: %s", expected, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(expected string) error {
	if testCtx.LastError == nil {
		return fmt.Errorf("expected an error mentioning %q, got none", expected)
	}
	if !strings.Contains(testCtx.LastError.Error(), expected) {
		return fmt.Errorf("error %q does not mention %q", testCtx.LastError, expected)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(testCtx.LastStdout)) {
		return fmt.Errorf("output is not valid JSON: %s", testCtx.LastStdout)
	}
	return nil
}

// theOutputShouldBeABase64BarcodeFor decodes stdout as base64 and scans it.
func (testCtx *TestContext) theOutputShouldBeABase64BarcodeFor(text string) error {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(testCtx.LastStdout))
	if err != nil {
		return fmt.Errorf("output is not base64: %w", err)
	}
	return checkBarcode(data, text)
}

// theOutputShouldBeAJPEGBarcodeFor scans raw stdout bytes.
func (testCtx *TestContext) theOutputShouldBeAJPEGBarcodeFor(text string) error {
	data := []byte(testCtx.LastStdout)
	if !bytes.HasPrefix(data, []byte{0xff, 0xd8}) {
		return fmt.Errorf("output is not JPEG data")
	}
	return checkBarcode(data, text)
}

func (testCtx *TestContext) aFileWithContent(name string, content *godog.DocString) error {
	path := testCtx.Path(name)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content.Content+"\n"), 0o644)
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if !testutil.FileExists(testCtx.Path(name)) {
		return fmt.Errorf("file %s does not exist", name)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	if testutil.FileExists(testCtx.Path(name)) {
		return fmt.Errorf("file %s exists", name)
	}
	return nil
}

// theFileShouldBeABarcodeFor scans a written artifact. Files ending in .b64
// hold base64 text.
func (testCtx *TestContext) theFileShouldBeABarcodeFor(name, text string) error {
	data, err := os.ReadFile(testCtx.Path(name)) //nolint:gosec // G304: scenario-controlled path
	if err != nil {
		return err
	}
	if strings.HasSuffix(name, ".b64") {
		if data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(string(data))); err != nil {
			return fmt.Errorf("%s is not base64: %w", name, err)
		}
	}
	return checkBarcode(data, text)
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	return testCtx.SetEnv(name, value)
}

// checkBarcode verifies data is a full-size raster that scans back to text.
func checkBarcode(data []byte, text string) error {
	img, err := testutil.DecodeImage(data)
	if err != nil {
		return err
	}
	if err := testutil.CheckRasterSize(img); err != nil {
		return err
	}
	got, err := testutil.DecodeText(data)
	if err != nil {
		return fmt.Errorf("barcode did not scan: %w", err)
	}
	if got != text {
		return fmt.Errorf("barcode decodes to %q, want %q", got, text)
	}
	return nil
}

// RegisterCommandSteps registers CLI execution and artifact steps.
func (testCtx *TestContext) RegisterCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^I run "([^"]*)" with input:$`, testCtx.iRunCommandWithInput)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the error output should contain "([^"]*)"$`, testCtx.theErrorOutputShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should be a base64 barcode for "([^"]*)"$`, testCtx.theOutputShouldBeABase64BarcodeFor)
	sc.Step(`^the output should be a JPEG barcode for "([^"]*)"$`, testCtx.theOutputShouldBeAJPEGBarcodeFor)

	sc.Step(`^a file "([^"]*)" with content:$`, testCtx.aFileWithContent)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should be a barcode for "([^"]*)"$`, testCtx.theFileShouldBeABarcodeFor)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
}
