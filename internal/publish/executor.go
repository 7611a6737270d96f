// Package publish uploads staged artifacts to a registry, classifying
// and retrying failures by cause.
package publish

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ReemX/pnpm-airgap/internal/artifact"
	"github.com/ReemX/pnpm-airgap/internal/backoff"
	"github.com/ReemX/pnpm-airgap/internal/log"
)

// DefaultMaxRetries is the attempt budget when Options leaves it zero.
const DefaultMaxRetries = 3

// Options tunes one Publish call.
type Options struct {
	// MaxRetries bounds publish attempts. Zero means DefaultMaxRetries.
	MaxRetries int
	// DryRun skips all invocation and reports the tag that would be used.
	DryRun bool
}

// Executor drives the publish attempt loop for single artifacts.
// Safe for concurrent use.
type Executor struct {
	publisher Publisher
	timeouts  TimeoutPolicy
	retry     backoff.Policy
	logger    *slog.Logger
}

// NewExecutor creates an Executor publishing through publisher with the
// given timeout policy.
func NewExecutor(publisher Publisher, timeouts TimeoutPolicy) *Executor {
	return &Executor{
		publisher: publisher,
		timeouts:  timeouts,
		retry: backoff.Policy{
			Initial:    1 * time.Second,
			Multiplier: 2,
			Cap:        30 * time.Second,
			JitterMax:  1 * time.Second,
		},
		logger: log.WithComponent("publish"),
	}
}

// Publish uploads one artifact, retrying transient failures and
// recovering version-ordering conflicts with a deterministic fallback
// tag. The returned Outcome is terminal.
func (e *Executor) Publish(ctx context.Context, h artifact.Handle, registryURL string, opts Options) Outcome {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	tag := SelectTag(h.Identity.Version)
	timeout := e.timeouts.For(h)
	logger := e.logger.With("artifact", h.Key(), "tag", tag)

	if opts.DryRun {
		logger.Info("dry run, skipping publish")
		return Outcome{
			Status:   StatusSuccess,
			Identity: h.Identity,
			TagUsed:  tag,
			DryRun:   true,
			Note:     "dry run: no upload performed",
		}
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := e.publisher.Publish(ctx, h.Path, registryURL, tag, timeout)
		if err == nil {
			logger.Info("published", "attempt", attempt)
			return Outcome{
				Status:       StatusSuccess,
				Identity:     h.Identity,
				AttemptCount: attempt,
				TagUsed:      tag,
			}
		}

		class := Classify(err.Error())
		logger.Warn("publish attempt failed",
			"attempt", attempt, "class", string(class), "error", firstLine(err.Error()))

		switch class {
		case ClassAlreadyExists:
			// An expected race between pre-check and publish, not a failure.
			out := Skipped(h.Identity, "registry reports version already present")
			out.AttemptCount = attempt
			return out

		case ClassVersionOrdering, ClassPrereleaseTagNeeded:
			return e.publishWithFallbackTag(ctx, h, registryURL, timeout, attempt, logger)

		case ClassTransient:
			if attempt < maxRetries {
				if err := e.retry.Sleep(ctx, attempt); err != nil {
					return errorOutcome(h.Identity, attempt, tag, err.Error())
				}
				continue
			}
			return errorOutcome(h.Identity, maxRetries, tag, err.Error())

		default:
			return errorOutcome(h.Identity, attempt, tag, err.Error())
		}
	}

	// Unreachable: every branch above returns or continues within the
	// attempt budget. Kept for the compiler.
	return errorOutcome(h.Identity, maxRetries, tag, "publish attempts exhausted")
}

// publishWithFallbackTag retries exactly once with the deterministic
// fallback tag after the registry refused an out-of-order publish. The
// fallback is a sub-step of the triggering attempt, not an extra retry.
func (e *Executor) publishWithFallbackTag(ctx context.Context, h artifact.Handle, registryURL string, timeout time.Duration, attempt int, logger *slog.Logger) Outcome {
	fallback := FallbackTag(h.Identity.Version)
	logger.Info("retrying with fallback tag", "fallback_tag", fallback)

	if err := e.publisher.Publish(ctx, h.Path, registryURL, fallback, timeout); err != nil {
		return errorOutcome(h.Identity, attempt, fallback, err.Error())
	}

	return Outcome{
		Status:       StatusSuccess,
		Identity:     h.Identity,
		AttemptCount: attempt,
		TagUsed:      fallback,
		Note:         "published under fallback tag " + fallback + " after version-ordering conflict",
	}
}

// errorOutcome builds a terminal Error outcome. Only the first line of
// the underlying message is kept: multi-line tool output is noise in
// reports.
func errorOutcome(id artifact.Identity, attempts int, tag, detail string) Outcome {
	return Outcome{
		Status:       StatusError,
		Identity:     id,
		AttemptCount: attempts,
		TagUsed:      tag,
		ErrorDetail:  firstLine(detail),
	}
}

// firstLine returns the first non-empty line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return strings.TrimSpace(s)
}
