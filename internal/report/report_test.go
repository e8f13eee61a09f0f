package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xssbench/xssbench/internal/bench"
)

func sampleResults() []bench.CaseResult {
	return []bench.CaseResult{
		{Sanitizer: "noop", Browser: "goja", VectorID: "script-1", PayloadContext: "html",
			Outcome: bench.OutcomeXSS, Executed: true, Details: "hook: alert:1"},
		{Sanitizer: "bluemonday", Browser: "goja", VectorID: "script-1", PayloadContext: "html",
			Outcome: bench.OutcomePass},
		{Sanitizer: "bluemonday", Browser: "goja", VectorID: "bold-1", PayloadContext: "html",
			Outcome: bench.OutcomeLossy, Lossy: true, LossyDetails: "position 0: missing b"},
	}
}

func TestNewAssignsRunID(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	run := New([]string{"goja"}, started, sampleResults())

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, []string{"goja"}, run.Browsers)
	assert.Equal(t, started, run.StartedAt)
	assert.False(t, run.FinishedAt.Before(started))
	assert.Len(t, run.Summary, 2)
	assert.Len(t, run.Results, 3)

	other := New([]string{"goja"}, started, nil)
	assert.NotEqual(t, run.ID, other.ID)
}

func TestWriteJSONRoundTrip(t *testing.T) {
	run := New([]string{"goja"}, time.Now(), sampleResults())
	path := filepath.Join(t.TempDir(), "out", "run.json")

	require.NoError(t, run.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded Run
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, run.Browsers, loaded.Browsers)
	require.Len(t, loaded.Results, 3)
	assert.Equal(t, "script-1", loaded.Results[0].VectorID)
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, bench.Summarize(sampleResults()))

	out := buf.String()
	assert.Contains(t, out, "SANITIZER")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "noop")
	assert.Contains(t, out, "bluemonday")
}

func TestFailuresSections(t *testing.T) {
	var buf bytes.Buffer
	Failures(&buf, sampleResults())

	out := buf.String()
	assert.Contains(t, out, "Executed payloads:")
	assert.Contains(t, out, "noop / script-1@html: hook: alert:1")
	assert.Contains(t, out, "Lossy sanitization:")
	assert.Contains(t, out, "bluemonday / bold-1@html: position 0: missing b")
	assert.NotContains(t, out, "Errors:")
}

func TestFailuresEmptyResults(t *testing.T) {
	var buf bytes.Buffer
	Failures(&buf, nil)
	assert.Empty(t, buf.String())
}
