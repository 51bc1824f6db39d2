package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: config-routing
description: config is a single table on ds_1
rules: rules.yaml
steps:
  - op: route
    facts: {table: t_config}
    expect:
      units: [ds_1.t_config]
assertions:
  - type: trace_count
    op: route
    count: 1
`

const failingScenario = `name: wrong-shard
description: expects the wrong shard
rules: rules.yaml
steps:
  - op: route
    facts:
      table: t_order
      sharding_values:
        - {column: user_id, value: 1}
        - {column: order_id, value: 4}
    expect:
      units: [ds_0.t_order_0]
`

// scenarioDir writes rules.yaml plus the given scenarios into a temp dir.
func scenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	rules, err := os.ReadFile(filepath.Join("testdata", "rules.yaml"))
	require.NoError(t, err)
	// Rules sit one level up so the scenario walk does not pick them up.
	sdir := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(sdir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yaml"), rules, 0644))
	for name, body := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(sdir, name), []byte(body), 0644))
	}
	return dir
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts between 1 and 2 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandNonExistentRulesDir(t *testing.T) {
	_, err := runTestCommand(t, "text", t.TempDir(), "/nonexistent/rules")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandPasses(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"config-routing.yaml": passingScenario})

	out, err := runTestCommand(t, "text", filepath.Join(dir, "scenarios"), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ config-routing")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandFails(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"config-routing.yaml": passingScenario,
		"wrong-shard.yaml":    failingScenario,
	})

	out, err := runTestCommand(t, "json", filepath.Join(dir, "scenarios"), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, ErrCodeTestFailed, response.Error.Code)
	assert.Equal(t, 1, response.Data.Passed)
	assert.Equal(t, 1, response.Data.Failed)

	var failed ScenarioResult
	for _, s := range response.Data.Scenarios {
		if !s.Pass {
			failed = s
		}
	}
	assert.Equal(t, "wrong-shard", failed.Name)
	assert.NotEmpty(t, failed.Errors)
}

func TestTestCommandLoadFailure(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"broken.yaml": "name: broken\nsteps: [\n"})

	out, err := runTestCommand(t, "text", filepath.Join(dir, "scenarios"), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandGolden(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"config-routing.yaml": passingScenario})
	scenarios := filepath.Join(dir, "scenarios")

	out, err := runTestCommand(t, "text", scenarios, dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	golden, err := os.ReadFile(filepath.Join(scenarios, "golden", "config-routing.golden"))
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"config-routing","trace":[{"op":"route","seq":1,"table":"t_config","units":["ds_1.t_config"]}]}`,
		string(golden))

	_, err = runTestCommand(t, "text", scenarios, dir)
	require.NoError(t, err)

	tampered := strings.Replace(string(golden), "ds_1.t_config", "ds_0.t_config", 1)
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "golden", "config-routing.golden"), []byte(tampered), 0644))

	out, err = runTestCommand(t, "text", scenarios, dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestTestHelpText(t *testing.T) {
	out, err := runTestCommand(t, "text", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "conformance")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "scenarios-dir")
	assert.Contains(t, out, "rules-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "order-routing.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "order-hint.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "user-encryption.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "order-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	for _, f := range files {
		assert.True(t, strings.HasPrefix(filepath.Base(f), "order-"), "Expected file to start with 'order-': %s", f)
	}
}

func TestFindScenarioFilesSkipsGolden(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	goldenDir := filepath.Join(tmpDir, "golden")
	require.NoError(t, os.MkdirAll(subDir, 0755))
	require.NoError(t, os.MkdirAll(goldenDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "stray.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		file     string
		name     string
		expected string
	}{
		{"/path/to/scenario.yaml", "scenario", "/path/to/golden/scenario.golden"},
		{"/path/to/file.yml", "named", "/path/to/golden/named.golden"},
		{"scenarios/test.yaml", "test", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.file, tc.name))
	}
}
