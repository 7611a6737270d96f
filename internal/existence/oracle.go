// Package existence answers whether an artifact is already present at a
// registry, with a tri-state result, bounded retries, and an
// eviction-bounded cache of certain answers.
package existence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ReemX/pnpm-airgap/internal/artifact"
	"github.com/ReemX/pnpm-airgap/internal/backoff"
	"github.com/ReemX/pnpm-airgap/internal/cache"
	"github.com/ReemX/pnpm-airgap/internal/log"
	"github.com/ReemX/pnpm-airgap/internal/registry"
)

const (
	// DefaultMaxRetries is the attempt budget when Options leaves it zero.
	DefaultMaxRetries = 3

	// firstAttemptTimeout is deliberately short: most checks answer fast,
	// and a stuck first attempt should fail over to a retry quickly.
	firstAttemptTimeout = 10 * time.Second

	// retryAttemptTimeout gives later attempts more room, since we now
	// know the registry is slow rather than down.
	retryAttemptTimeout = 30 * time.Second
)

// MetadataFetcher is the read-path boundary the oracle needs from the
// registry client.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, registryURL, name string, timeout time.Duration) (*registry.PackageMetadata, error)
}

// Options tunes one Check call.
type Options struct {
	// UseCache consults the shared cache before going to the network.
	UseCache bool
	// MaxRetries bounds total attempts for retryable failures.
	// Zero means DefaultMaxRetries.
	MaxRetries int
}

// Oracle performs existence checks. Safe for concurrent use; the cache
// is shared across all callers of one Oracle instance.
type Oracle struct {
	fetcher MetadataFetcher
	cache   *cache.LRU[Result]
	retry   backoff.Policy
	logger  *slog.Logger
}

// NewOracle creates an Oracle with a cache bounded at cacheSize entries,
// evicting evictBlock entries per pass.
func NewOracle(fetcher MetadataFetcher, cacheSize, evictBlock int) *Oracle {
	return &Oracle{
		fetcher: fetcher,
		cache:   cache.New[Result](cacheSize, evictBlock),
		retry: backoff.Policy{
			Initial:    500 * time.Millisecond,
			Multiplier: 2,
			Cap:        8 * time.Second,
			JitterMax:  500 * time.Millisecond,
		},
		logger: log.WithComponent("existence"),
	}
}

// Check determines whether id exists at registryURL.
//
// Certain results (Exists / NotExists) are written to the cache; an
// Uncertain result never is, so a transient outage cannot poison later
// checks. Auth failures and malformed 200 bodies are not retried since
// neither self-heals. Everything else retries with jittered exponential
// backoff up to the attempt budget.
func (o *Oracle) Check(ctx context.Context, id artifact.Identity, registryURL string, opts Options) Result {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	key := cacheKey(registryURL, id)
	if opts.UseCache {
		if res, ok := o.cache.Get(key); ok {
			return res
		}
	}

	var lastDetail string
	for attempt := 1; attempt <= maxRetries; attempt++ {
		timeout := firstAttemptTimeout
		if attempt > 1 {
			timeout = retryAttemptTimeout
		}

		meta, err := o.fetcher.FetchMetadata(ctx, registryURL, id.Name, timeout)
		if err == nil {
			res := notExists()
			if meta.HasVersion(id.Version) {
				res = exists()
			}
			o.cache.Set(key, res)
			return res
		}

		res, retryable := o.classify(err)
		if !retryable {
			if res.Certain {
				o.cache.Set(key, res)
			}
			return res
		}
		lastDetail = res.ErrorDetail

		if attempt == maxRetries {
			break
		}
		o.logger.Debug("existence check failed, retrying",
			"artifact", id.Key(), "attempt", attempt, "error", err)
		if err := o.retry.Sleep(ctx, attempt); err != nil {
			return uncertain(err.Error())
		}
	}

	return uncertain(lastDetail)
}

// classify maps a fetch error to a Result and whether it is worth
// retrying.
func (o *Oracle) classify(err error) (Result, bool) {
	var httpErr *registry.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.IsNotFound():
			// Registries signal "package never published" with a 404.
			return notExists(), false
		case httpErr.IsAuth():
			// Auth failures do not self-heal.
			return uncertain(err.Error()), false
		default:
			return uncertain(err.Error()), true
		}
	}

	var parseErr *registry.ParseError
	if errors.As(err, &parseErr) {
		// A malformed payload will not change on retry.
		return uncertain(err.Error()), false
	}

	// Transport error or timeout.
	return uncertain(err.Error()), true
}

// CacheStats exposes cache hit/miss/eviction counters.
func (o *Oracle) CacheStats() cache.Stats {
	return o.cache.Stats()
}

// ClearCache empties the existence cache.
func (o *Oracle) ClearCache() {
	o.cache.Clear()
}

func cacheKey(registryURL string, id artifact.Identity) string {
	return registryURL + "::" + id.Key()
}
