package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ReemX/pnpm-airgap/internal/report"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one row of `history list`: the run's identity and
// totals without its per-artifact detail.
type RunSummary struct {
	RunID       string
	RegistryURL string
	DryRun      bool
	StartedAt   time.Time
	Totals      report.Totals
}

// Store reads and writes run history.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open history database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordRun persists a finished run's report. Recording the same run ID
// twice is an error; run IDs are minted fresh per run.
func (s *Store) RecordRun(ctx context.Context, r *report.Report) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	dryRun := 0
	if r.DryRun {
		dryRun = 1
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs(id, registry_url, dry_run, started_at, finished_at,
                 total, published, skipped, failed, recovered, report)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, r.RunID, r.RegistryURL, dryRun,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Totals.Total, r.Totals.Published, r.Totals.Skipped,
		r.Totals.Failed, r.Totals.Recovered, string(doc))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means
// a default of 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, registry_url, dry_run, started_at,
       total, published, skipped, failed, recovered
FROM runs ORDER BY started_at DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			sum       RunSummary
			dryRun    int
			startedAt string
		)
		if err := rows.Scan(&sum.RunID, &sum.RegistryURL, &dryRun, &startedAt,
			&sum.Totals.Total, &sum.Totals.Published, &sum.Totals.Skipped,
			&sum.Totals.Failed, &sum.Totals.Recovered); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		sum.DryRun = dryRun != 0
		sum.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", sum.RunID, err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// GetRun loads one run's full report.
func (s *Store) GetRun(ctx context.Context, runID string) (*report.Report, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		"SELECT report FROM runs WHERE id = ?;", runID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", runID, err)
	}

	var r report.Report
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("decode stored report for run %s: %w", runID, err)
	}
	return &r, nil
}
