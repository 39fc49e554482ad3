package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReplay_TextOutput(t *testing.T) {
	out, err := runCLI(t, "replay", "--scenario", filepath.Join("testdata", "counter.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "scenario: counter")
	assert.Contains(t, out, "result: PASS")
	assert.Contains(t, out, "final store:")
	assert.Contains(t, out, "increment")
}

func TestReplay_JSONOutput(t *testing.T) {
	out, err := runCLI(t, "replay",
		"--scenario", filepath.Join("testdata", "counter.yaml"),
		"--format", "json")
	require.NoError(t, err)

	var decoded struct {
		Scenario string         `json:"scenario"`
		Pass     bool           `json:"pass"`
		Final    map[string]any `json:"final"`
		Trace    []struct {
			Seq   int64  `json:"seq"`
			Event string `json:"event"`
		} `json:"trace"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "counter", decoded.Scenario)
	assert.True(t, decoded.Pass)
	// Init marker plus the three stage deliveries of one published event.
	require.Len(t, decoded.Trace, 4)
	assert.Equal(t, "@@reflux/INIT", decoded.Trace[0].Event)
}

func TestReplay_FailingScenarioExitsNonZero(t *testing.T) {
	out, err := runCLI(t, "replay", "--scenario", filepath.Join("testdata", "failing.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "result: FAIL")
}

func TestReplay_MissingScenarioFlag(t *testing.T) {
	_, err := runCLI(t, "replay")
	assert.Error(t, err)
}

func TestReplay_UnknownFormat(t *testing.T) {
	_, err := runCLI(t, "replay",
		"--scenario", filepath.Join("testdata", "counter.yaml"),
		"--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestValidate_ValidScenario(t *testing.T) {
	out, err := runCLI(t, "validate", "--scenario", filepath.Join("testdata", "counter.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}

func TestValidate_UnknownReducerRejected(t *testing.T) {
	_, err := runCLI(t, "validate", "--scenario", filepath.Join("testdata", "bad-reducer.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema")
}

func TestValidate_MissingModelIDRejected(t *testing.T) {
	_, err := runCLI(t, "validate", "--scenario", filepath.Join("testdata", "missing-model-id.yaml"))
	assert.Error(t, err)
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := runCLI(t, "validate", "--scenario", filepath.Join("testdata", "absent.yaml"))
	assert.Error(t, err)
}
