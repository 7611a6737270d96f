package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReemX/pnpm-airgap/internal/artifact"
	"github.com/ReemX/pnpm-airgap/internal/publish"
)

func id(name, version string) artifact.Identity {
	return artifact.Identity{Name: name, Version: version}
}

func sampleOutcomes() []publish.Outcome {
	return []publish.Outcome{
		{Status: publish.StatusSuccess, Identity: id("alpha", "1.0.0"), AttemptCount: 1, TagUsed: "latest"},
		{Status: publish.StatusSuccess, Identity: id("beta", "2.0.0"), AttemptCount: 2, TagUsed: "latest",
			Note: "recovered: artifact present at registry despite reported failure (indexing lag)"},
		{Status: publish.StatusSkipped, Identity: id("gamma", "0.1.0"), Note: "already present"},
		{Status: publish.StatusError, Identity: id("delta", "3.0.0"), AttemptCount: 3,
			ErrorDetail: "connect: connection refused"},
	}
}

func TestBuildTotals(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := Build("https://registry.internal.example", false,
		started, started.Add(90*time.Second), sampleOutcomes())

	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, Totals{Total: 4, Published: 2, Skipped: 1, Failed: 1, Recovered: 1}, r.Totals)
}

func TestBuildWithIDKeepsRunID(t *testing.T) {
	r := BuildWithID("run-42", "https://r.example", true, time.Now(), time.Now(), nil)
	assert.Equal(t, "run-42", r.RunID)
	assert.True(t, r.DryRun)
	assert.Equal(t, Totals{}, r.Totals)
}

func TestFailures(t *testing.T) {
	r := Build("https://r.example", false, time.Now(), time.Now(), sampleOutcomes())

	failed := r.Failures()
	require.Len(t, failed, 1)
	assert.Equal(t, id("delta", "3.0.0"), failed[0].Identity)
}

func TestSaveWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r := Build("https://r.example", false, time.Now(), time.Now(), sampleOutcomes())

	require.NoError(t, Save(path, r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Report
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, r.RunID, loaded.RunID)
	assert.Equal(t, r.Totals, loaded.Totals)
	assert.Len(t, loaded.Artifacts, 4)
}

func TestRenderSummary(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := BuildWithID("run-42", "https://r.example", false,
		started, started.Add(90*time.Second), sampleOutcomes())

	out := Render(r, RenderOptions{NoColor: true})

	assert.Contains(t, out, "Publish run run-42")
	assert.Contains(t, out, "published 2")
	assert.Contains(t, out, "skipped 1")
	assert.Contains(t, out, "failed 1")
	assert.Contains(t, out, "1 recovered by reconciliation")
	assert.Contains(t, out, "delta@3.0.0")
	assert.Contains(t, out, "(3 attempts) connect: connection refused")
}

func TestRenderCapsFailureList(t *testing.T) {
	outcomes := make([]publish.Outcome, 0, 5)
	for _, v := range []string{"1.0.0", "1.0.1", "1.0.2", "1.0.3", "1.0.4"} {
		outcomes = append(outcomes, publish.Outcome{
			Status: publish.StatusError, Identity: id("pkg", v),
			AttemptCount: 1, ErrorDetail: "boom",
		})
	}
	r := Build("https://r.example", false, time.Now(), time.Now(), outcomes)

	out := Render(r, RenderOptions{NoColor: true, MaxFailures: 2})

	assert.Contains(t, out, "pkg@1.0.0")
	assert.Contains(t, out, "pkg@1.0.1")
	assert.NotContains(t, out, "pkg@1.0.2")
	assert.Contains(t, out, "... and 3 more")
}

func TestRenderDryRunMarker(t *testing.T) {
	r := BuildWithID("run-42", "https://r.example", true, time.Now(), time.Now(), nil)

	out := Render(r, RenderOptions{NoColor: true})
	assert.True(t, strings.Contains(out, "(dry run)"))
}
