// Package reconcile re-examines ambiguous publish failures after a
// batch completes. A registry's read path can lag its write path, so a
// publish failure that surfaced as a 404 may describe an artifact that
// was in fact accepted but not yet indexed.
package reconcile

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ReemX/pnpm-airgap/internal/artifact"
	"github.com/ReemX/pnpm-airgap/internal/existence"
	"github.com/ReemX/pnpm-airgap/internal/log"
	"github.com/ReemX/pnpm-airgap/internal/pool"
	"github.com/ReemX/pnpm-airgap/internal/publish"
)

// Checker is the existence boundary the pass re-checks through.
type Checker interface {
	Check(ctx context.Context, id artifact.Identity, registryURL string, opts existence.Options) existence.Result
}

// Split divides failures into genuinely failed and recovered.
type Split struct {
	// Confirmed are real failures.
	Confirmed []publish.Outcome
	// Recovered were false negatives: the artifact is present despite
	// the reported failure. Counted as successes.
	Recovered []publish.Outcome
}

// Pass re-checks ambiguous failures with its own bounded concurrency.
type Pass struct {
	oracle      Checker
	concurrency int
	logger      *slog.Logger
}

// New creates a Pass checking through oracle with at most concurrency
// checks in flight.
func New(oracle Checker, concurrency int) *Pass {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Pass{
		oracle:      oracle,
		concurrency: concurrency,
		logger:      log.WithComponent("reconcile"),
	}
}

// Reconcile re-checks every failure whose error text signals a
// not-found ambiguity and which carries a resolvable identity, with the
// existence cache bypassed so a stale pre-check answer cannot mask the
// publish that just happened. A re-check that is anything other than a
// certain Exists confirms the failure.
func (p *Pass) Reconcile(ctx context.Context, failures []publish.Outcome, registryURL string) Split {
	var split Split
	var candidates []publish.Outcome

	for _, f := range failures {
		if isIndexLagCandidate(f) {
			candidates = append(candidates, f)
		} else {
			split.Confirmed = append(split.Confirmed, f)
		}
	}

	if len(candidates) == 0 {
		return split
	}
	p.logger.Info("re-checking ambiguous failures", "candidates", len(candidates))

	results := pool.Map(ctx, candidates, p.concurrency, func(ctx context.Context, f publish.Outcome) (existence.Result, error) {
		return p.oracle.Check(ctx, f.Identity, registryURL, existence.Options{UseCache: false}), nil
	})

	for i, f := range candidates {
		res := results[i]
		if res.Err == nil && res.Value.Status == existence.StatusExists && res.Value.Certain {
			recovered := f
			recovered.Status = publish.StatusSuccess
			recovered.Note = "recovered: artifact present at registry despite reported failure (indexing lag)"
			recovered.ErrorDetail = ""
			split.Recovered = append(split.Recovered, recovered)
			p.logger.Info("false negative recovered", "artifact", f.Identity.Key())
		} else {
			split.Confirmed = append(split.Confirmed, f)
		}
	}
	return split
}

// isIndexLagCandidate reports whether a failure is worth re-checking:
// its error text must signal the specific 404 ambiguity and its
// identity must be resolvable.
func isIndexLagCandidate(f publish.Outcome) bool {
	if f.Identity.Name == "" || f.Identity.Version == "" {
		return false
	}
	msg := strings.ToLower(f.ErrorDetail)
	return strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}
