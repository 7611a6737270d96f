package publish

import "github.com/ReemX/pnpm-airgap/internal/artifact"

// Status is the terminal state of one artifact's publish.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Outcome records how one artifact's publish ended. Outcomes are
// terminal and never mutated after creation; the reconciliation pass
// produces new Outcomes rather than editing these.
type Outcome struct {
	Status       Status            `json:"status"`
	Identity     artifact.Identity `json:"identity"`
	AttemptCount int               `json:"attempt_count"`
	TagUsed      string            `json:"tag_used,omitempty"`
	Note         string            `json:"note,omitempty"`
	ErrorDetail  string            `json:"error_detail,omitempty"`
	DryRun       bool              `json:"dry_run,omitempty"`
}

// Skipped builds a Skipped outcome with the given reason. Used both by
// the pre-check short-circuit and the already-exists conflict path.
func Skipped(id artifact.Identity, reason string) Outcome {
	return Outcome{
		Status:   StatusSkipped,
		Identity: id,
		Note:     reason,
	}
}
