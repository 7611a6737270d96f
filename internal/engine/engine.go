// Package engine orchestrates a full transfer run: assemble the staged
// batch, pre-check what the registry already has, publish the rest,
// then reconcile reported failures against registry reality.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ReemX/pnpm-airgap/internal/artifact"
	"github.com/ReemX/pnpm-airgap/internal/config"
	"github.com/ReemX/pnpm-airgap/internal/existence"
	"github.com/ReemX/pnpm-airgap/internal/log"
	"github.com/ReemX/pnpm-airgap/internal/pool"
	"github.com/ReemX/pnpm-airgap/internal/publish"
	"github.com/ReemX/pnpm-airgap/internal/reconcile"
	"github.com/ReemX/pnpm-airgap/internal/report"
	"github.com/ReemX/pnpm-airgap/internal/snapshot"
)

// ExistenceChecker is the pre-check boundary, satisfied by
// existence.Oracle.
type ExistenceChecker interface {
	Check(ctx context.Context, id artifact.Identity, registryURL string, opts existence.Options) existence.Result
}

// ArtifactPublisher is the publish boundary, satisfied by
// publish.Executor.
type ArtifactPublisher interface {
	Publish(ctx context.Context, h artifact.Handle, registryURL string, opts publish.Options) publish.Outcome
}

// Reconciler is the failure re-check boundary, satisfied by
// reconcile.Pass.
type Reconciler interface {
	Reconcile(ctx context.Context, failures []publish.Outcome, registryURL string) reconcile.Split
}

// Engine runs transfer batches.
type Engine struct {
	cfg        *config.Config
	checker    ExistenceChecker
	publisher  ArtifactPublisher
	reconciler Reconciler
	logger     *slog.Logger
}

// New wires an Engine from its collaborators.
func New(cfg *config.Config, checker ExistenceChecker, publisher ArtifactPublisher, reconciler Reconciler) *Engine {
	return &Engine{
		cfg:        cfg,
		checker:    checker,
		publisher:  publisher,
		reconciler: reconciler,
		logger:     log.WithComponent("engine"),
	}
}

// RunOptions tunes one run.
type RunOptions struct {
	// Snapshot, when set, short-circuits pre-checks for artifacts the
	// snapshot already lists as present.
	Snapshot *snapshot.Snapshot
	// DryRun forces a dry run regardless of config.
	DryRun bool
}

// Run executes a full transfer of the staged batch and returns its
// report. The report lists every staged artifact exactly once, in
// batch order, even when pre-check, publish, and reconciliation each
// touched it.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*report.Report, error) {
	runID := uuid.NewString()
	logger := e.logger.With("run", runID)
	startedAt := time.Now()
	dryRun := opts.DryRun || e.cfg.Publish.DryRun
	registryURL := e.cfg.Registry.URL

	batch, err := artifact.AssembleBatch(e.cfg.Staging.Dir)
	if err != nil {
		return nil, fmt.Errorf("assemble batch: %w", err)
	}
	logger.Info("batch assembled", "artifacts", len(batch), "dry_run", dryRun)

	outcomes := make([]publish.Outcome, len(batch))

	// Pre-check: anything certainly present is skipped before any upload
	// is attempted. Uncertain answers publish anyway; the registry's own
	// conflict error is the authoritative fallback.
	candidates := e.precheck(ctx, batch, registryURL, opts.Snapshot, outcomes)
	logger.Info("pre-check complete",
		"present", len(batch)-len(candidates), "to_publish", len(candidates))

	results := pool.Map(ctx, candidates, e.cfg.Publish.Concurrency,
		func(ctx context.Context, c candidate) (publish.Outcome, error) {
			return e.publisher.Publish(ctx, c.handle, registryURL, publish.Options{
				MaxRetries: e.cfg.Publish.MaxRetries,
				DryRun:     dryRun,
			}), nil
		})
	for i, res := range results {
		out := res.Value
		if res.Err != nil {
			// Only cancellation reaches here; worker errors live in Outcome.
			out = publish.Outcome{
				Status:      publish.StatusError,
				Identity:    candidates[i].handle.Identity,
				ErrorDetail: res.Err.Error(),
			}
		}
		outcomes[candidates[i].index] = out
	}

	if !dryRun {
		e.reconcileFailures(ctx, outcomes, registryURL, logger)
	}

	r := report.BuildWithID(runID, registryURL, dryRun, startedAt, time.Now(), outcomes)
	logger.Info("run complete",
		"published", r.Totals.Published, "skipped", r.Totals.Skipped,
		"failed", r.Totals.Failed, "recovered", r.Totals.Recovered)
	return r, nil
}

// candidate is a batch entry that survived pre-check, carrying its
// position so the final report keeps batch order.
type candidate struct {
	index  int
	handle artifact.Handle
}

// precheck fills outcomes for artifacts already present and returns the
// rest as publish candidates.
func (e *Engine) precheck(ctx context.Context, batch []artifact.Handle, registryURL string, snap *snapshot.Snapshot, outcomes []publish.Outcome) []candidate {
	type checked struct {
		present bool
		note    string
	}

	results := pool.Map(ctx, batch, e.cfg.Check.Concurrency,
		func(ctx context.Context, h artifact.Handle) (checked, error) {
			if snap != nil && snap.Has(h.Identity) {
				return checked{present: true, note: "snapshot lists version as present"}, nil
			}
			res := e.checker.Check(ctx, h.Identity, registryURL, existence.Options{
				UseCache:   true,
				MaxRetries: e.cfg.Check.MaxRetries,
			})
			if res.Certain && res.Status == existence.StatusExists {
				return checked{present: true, note: "registry already has version"}, nil
			}
			return checked{}, nil
		})

	var candidates []candidate
	for i, res := range results {
		if res.Err == nil && res.Value.present {
			outcomes[i] = publish.Skipped(batch[i].Identity, res.Value.note)
			continue
		}
		candidates = append(candidates, candidate{index: i, handle: batch[i]})
	}
	return candidates
}

// reconcileFailures re-checks failed outcomes and swaps in recovered
// ones in place.
func (e *Engine) reconcileFailures(ctx context.Context, outcomes []publish.Outcome, registryURL string, logger *slog.Logger) {
	var failures []publish.Outcome
	for _, o := range outcomes {
		if o.Status == publish.StatusError {
			failures = append(failures, o)
		}
	}
	if len(failures) == 0 {
		return
	}

	split := e.reconciler.Reconcile(ctx, failures, registryURL)
	if len(split.Recovered) == 0 {
		return
	}
	logger.Info("reconciliation recovered failures", "recovered", len(split.Recovered))

	byKey := make(map[string]publish.Outcome, len(split.Recovered))
	for _, o := range split.Recovered {
		byKey[o.Identity.Key()] = o
	}
	for i, o := range outcomes {
		if o.Status != publish.StatusError {
			continue
		}
		if rec, ok := byKey[o.Identity.Key()]; ok {
			outcomes[i] = rec
		}
	}
}

// CheckResult pairs a staged artifact with its existence answer, for
// the standalone pre-check command.
type CheckResult struct {
	Handle artifact.Handle
	Result existence.Result
}

// Precheck runs existence checks over the staged batch without
// publishing anything.
func (e *Engine) Precheck(ctx context.Context) ([]CheckResult, error) {
	batch, err := artifact.AssembleBatch(e.cfg.Staging.Dir)
	if err != nil {
		return nil, fmt.Errorf("assemble batch: %w", err)
	}

	results := pool.Map(ctx, batch, e.cfg.Check.Concurrency,
		func(ctx context.Context, h artifact.Handle) (existence.Result, error) {
			return e.checker.Check(ctx, h.Identity, e.cfg.Registry.URL, existence.Options{
				UseCache:   true,
				MaxRetries: e.cfg.Check.MaxRetries,
			}), nil
		})

	out := make([]CheckResult, len(batch))
	for i, res := range results {
		out[i] = CheckResult{Handle: batch[i], Result: res.Value}
		if res.Err != nil {
			out[i].Result = existence.Result{
				Status:      existence.StatusUncertain,
				ErrorDetail: res.Err.Error(),
			}
		}
	}
	return out, nil
}
