package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/goctc/cmd/ctc/cmd"
	"github.com/cucumber/godog"
)

// iRunCommand executes a command line against a fresh in-process command
// tree. The leading program name is optional. The command runs inside the
// scenario temp directory, which also stands in for $HOME so no user
// configuration is picked up.
func (testCtx *TestContext) iRunCommand(command string) error {
	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "ctc" {
		parts = parts[1:]
	}

	restore, err := testCtx.enterTempDir()
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	root := cmd.NewRootCommand()
	root.SetArgs(parts)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(""))

	err = root.ExecuteContext(ctx)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

func (testCtx *TestContext) enterTempDir() (func(), error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	home, hadHome := os.LookupEnv("HOME")

	if err := os.Chdir(testCtx.TempDir); err != nil {
		return nil, fmt.Errorf("failed to enter temp directory: %w", err)
	}
	_ = os.Setenv("HOME", testCtx.TempDir)

	return func() {
		_ = os.Chdir(wd)
		if hadHome {
			_ = os.Setenv("HOME", home)
		} else {
			_ = os.Unsetenv("HOME")
		}
	}, nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies stdout contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) stderrShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastStderr, expectedText) {
		return fmt.Errorf("stderr does not contain '%s'\nActual stderr: %s", expectedText, testCtx.LastStderr)
	}
	return nil
}

// theOutputShouldHaveLines verifies the number of non-empty stdout lines.
func (testCtx *TestContext) theOutputShouldHaveLines(n int) error {
	count := 0
	for line := range strings.SplitSeq(testCtx.LastOutput, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("expected %d output lines, got %d\nOutput: %s", n, count, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies stdout is a JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := parseJSON(testCtx.LastOutput)
	return err
}

// theJSONShouldContain verifies the JSON output contains a field path.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	data, err := parseJSON(testCtx.LastOutput)
	if err != nil {
		return err
	}
	_, err = lookupField(data, field)
	return err
}

func (testCtx *TestContext) theJSONShouldNotContain(field string) error {
	data, err := parseJSON(testCtx.LastOutput)
	if err != nil {
		return err
	}
	if _, err := lookupField(data, field); err == nil {
		return fmt.Errorf("field '%s' unexpectedly present in JSON", field)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldBe(field, expected string) error {
	return fieldShouldBe(testCtx.LastOutput, field, expected)
}

func (testCtx *TestContext) theJSONFieldShouldBeApproximately(field string, expected float64) error {
	return fieldShouldBeApproximately(testCtx.LastOutput, field, expected)
}

// theErrorShouldMention verifies the error message contains specific text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil && testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}

	fullErrorText := testCtx.LastStderr
	if testCtx.LastError != nil {
		fullErrorText += " " + testCtx.LastError.Error()
	}

	if !strings.Contains(strings.ToLower(fullErrorText), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, fullErrorText)
	}
	return nil
}

// theFileShouldExist verifies that a file exists in the temp directory.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	if _, err := os.Stat(testCtx.Path(filename)); os.IsNotExist(err) {
		return fmt.Errorf("file %s does not exist", filename)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(filename, content string) error {
	data, err := os.ReadFile(testCtx.Path(filename))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), content) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", filename, content, data)
	}
	return nil
}

func parseJSON(s string) (any, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, errors.New("no JSON found in output")
	}
	var data any
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, trimmed)
	}
	return data, nil
}

// lookupField follows a dotted path through objects and arrays, e.g.
// "result.gradient.0.1" or "2.best_path".
func lookupField(data any, field string) (any, error) {
	current := data
	parts := strings.Split(field, ".")
	for i, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			val, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field '%s' not found in JSON", strings.Join(parts[:i+1], "."))
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index '%s' out of range in JSON", strings.Join(parts[:i+1], "."))
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("cannot navigate deeper into non-object field '%s'", strings.Join(parts[:i], "."))
		}
	}
	return current, nil
}

func fieldShouldBe(doc, field, expected string) error {
	data, err := parseJSON(doc)
	if err != nil {
		return err
	}
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(val); got != expected {
		return fmt.Errorf("field '%s' is %q, expected %q", field, got, expected)
	}
	return nil
}

func fieldShouldBeApproximately(doc, field string, expected float64) error {
	data, err := parseJSON(doc)
	if err != nil {
		return err
	}
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	got, ok := val.(float64)
	if !ok {
		return fmt.Errorf("field '%s' is %v, not a number", field, val)
	}
	if math.Abs(got-expected) > 1e-9 {
		return fmt.Errorf("field '%s' is %v, expected %v", field, got, expected)
	}
	return nil
}

// RegisterCommonSteps registers the command and output step definitions.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	// Command execution
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	// Output verification
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^stderr should contain "([^"]*)"$`, testCtx.stderrShouldContain)
	sc.Step(`^the output should have (\d+) lines$`, testCtx.theOutputShouldHaveLines)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON should not contain "([^"]*)"$`, testCtx.theJSONShouldNotContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should be approximately ([-+0-9.eE]+)$`, testCtx.theJSONFieldShouldBeApproximately)

	// Error handling
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	// Files
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}
