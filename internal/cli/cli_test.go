package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/copyleftdev/uiprobe/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodSnapshot = `<html><body>
<div role="dialog" aria-modal="true" aria-labelledby="settings-title">
  <h2 id="settings-title">System Options</h2>
  <button aria-label="Close settings">x</button>
  <label for="sfx-volume">SFX Volume</label><input id="sfx-volume" type="range">
  <label for="music-volume">Music Volume</label><input id="music-volume" type="range">
  <label for="visual-accessibility">Visual Accessibility</label><select id="visual-accessibility"></select>
</div>
</body></html>`

// brokenSnapshot lacks aria-modal and the close button.
const brokenSnapshot = `<html><body>
<div role="dialog" aria-labelledby="settings-title">
  <h2 id="settings-title">System Options</h2>
  <label for="sfx-volume">SFX Volume</label><input id="sfx-volume" type="range">
  <label for="music-volume">Music Volume</label><input id="music-volume" type="range">
  <label for="visual-accessibility">Visual Accessibility</label><select id="visual-accessibility"></select>
</div>
</body></html>`

func writeSnapshot(t *testing.T, html string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.html")
	require.NoError(t, os.WriteFile(path, []byte(html), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitVerified, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitUsage, GetExitCode(WrapExitError(ExitUsage, "bad", nil)))

	wrapped := WrapExitError(ExitFailure, "verification failed", probe.ErrModalTimeout)
	assert.ErrorIs(t, wrapped, probe.ErrModalTimeout)
	assert.Equal(t, "verification failed: "+probe.ErrModalTimeout.Error(), wrapped.Error())
}

func TestCheck_Passes(t *testing.T) {
	out, err := execute(t, "check", "--dom", writeSnapshot(t, goodSnapshot))
	require.NoError(t, err)
	assert.Contains(t, out, "PASSED")
	assert.Equal(t, 8, strings.Count(out, "passed"))
}

func TestCheck_FailFast(t *testing.T) {
	out, err := execute(t, "check", "--dom", writeSnapshot(t, brokenSnapshot))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var mismatch *probe.AssertionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Item)

	assert.Contains(t, out, "FAILED")
	assert.Equal(t, 6, strings.Count(out, "skipped"))
}

func TestCheck_CollectAllJSON(t *testing.T) {
	out, err := execute(t, "check", "--dom", writeSnapshot(t, brokenSnapshot), "--mode", "collect_all", "--format", "json")
	require.Error(t, err)

	var res checkResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Passed)
	require.Len(t, res.Assertions, 8)

	var failed []int
	for _, a := range res.Assertions {
		if a.Status == probe.AssertionFailed {
			failed = append(failed, a.Index)
		}
	}
	assert.Equal(t, []int{2, 8}, failed)
}

func TestCheck_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing dom flag", []string{"check"}},
		{"missing file", []string{"check", "--dom", filepath.Join(t.TempDir(), "nope.html")}},
		{"bad mode", []string{"check", "--dom", writeSnapshot(t, goodSnapshot), "--mode", "sometimes"}},
		{"bad format", []string{"check", "--dom", writeSnapshot(t, goodSnapshot), "--format", "yaml"}},
		{"unknown flag", []string{"check", "--frobnicate"}},
		{"unknown command", []string{"frobnicate"}},
		{"missing config file", []string{"check", "--dom", writeSnapshot(t, goodSnapshot), "--config", filepath.Join(t.TempDir(), "none.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitUsage, GetExitCode(err))
		})
	}
}

func TestWriteReport_Text(t *testing.T) {
	report := &probe.Report{
		ID:        "run-1",
		TargetURL: "http://localhost:5173",
		Passed:    false,
		Error:     "stage open_settings: locator matched no elements",
		Stages: []probe.StageResult{
			{Stage: probe.StageNavigate, Outcome: probe.OutcomeSuccess, Duration: 120 * time.Millisecond},
			{Stage: probe.StageOpenSettings, Outcome: probe.OutcomeNotFound, Evidence: probe.TagNoSettingsButton, Detail: "no trigger"},
		},
		Evidence: []string{"verification/initial_load.png", "verification/no_settings_btn.png"},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, "text", report))
	out := buf.String()
	assert.Contains(t, out, "Run run-1 against http://localhost:5173: FAILED")
	assert.Contains(t, out, "evidence=no_settings_btn")
	assert.Contains(t, out, "verification/no_settings_btn.png")
	assert.Contains(t, out, "Error: stage open_settings")
	assert.NotContains(t, out, "Assertions:")
}

func TestWriteReport_JSON(t *testing.T) {
	report := &probe.Report{ID: "run-2", Passed: true}
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, "json", report))

	var decoded probe.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-2", decoded.ID)
	assert.True(t, decoded.Passed)
}
