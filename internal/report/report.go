// Package report assembles the per-run result document: one entry per
// artifact plus aggregate counts, persisted as JSON and rendered as a
// terminal summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ReemX/pnpm-airgap/internal/publish"
)

// Report is the durable record of one publish run.
type Report struct {
	RunID       string            `json:"run_id"`
	RegistryURL string            `json:"registry_url"`
	DryRun      bool              `json:"dry_run,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Totals      Totals            `json:"totals"`
	Artifacts   []publish.Outcome `json:"artifacts"`
}

// Totals aggregates outcome counts. Recovered counts successes that the
// reconciliation pass rescued from a reported failure; those are also
// included in Published.
type Totals struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Recovered int `json:"recovered"`
}

// recoveredNotePrefix marks outcomes the reconciliation pass flipped.
const recoveredNotePrefix = "recovered"

// Build assembles a Report from a run's outcomes. A fresh run ID is
// minted here; callers that already hold one use BuildWithID.
func Build(registryURL string, dryRun bool, startedAt, finishedAt time.Time, outcomes []publish.Outcome) *Report {
	return BuildWithID(uuid.NewString(), registryURL, dryRun, startedAt, finishedAt, outcomes)
}

// BuildWithID is Build with a caller-supplied run ID.
func BuildWithID(runID, registryURL string, dryRun bool, startedAt, finishedAt time.Time, outcomes []publish.Outcome) *Report {
	r := &Report{
		RunID:       runID,
		RegistryURL: registryURL,
		DryRun:      dryRun,
		StartedAt:   startedAt.UTC(),
		FinishedAt:  finishedAt.UTC(),
		Artifacts:   outcomes,
	}
	for _, o := range outcomes {
		r.Totals.Total++
		switch o.Status {
		case publish.StatusSuccess:
			r.Totals.Published++
			if strings.HasPrefix(o.Note, recoveredNotePrefix) {
				r.Totals.Recovered++
			}
		case publish.StatusSkipped:
			r.Totals.Skipped++
		case publish.StatusError:
			r.Totals.Failed++
		}
	}
	return r
}

// Failures returns the error outcomes, in run order.
func (r *Report) Failures() []publish.Outcome {
	var failed []publish.Outcome
	for _, o := range r.Artifacts {
		if o.Status == publish.StatusError {
			failed = append(failed, o)
		}
	}
	return failed
}

// Save writes the report as indented JSON.
func Save(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
