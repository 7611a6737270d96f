package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ReemX/pnpm-airgap/internal/log"
	"github.com/ReemX/pnpm-airgap/internal/pool"
	"github.com/ReemX/pnpm-airgap/internal/registry"
)

// metadataTimeout bounds each per-name metadata fetch during export.
const metadataTimeout = 30 * time.Second

// RegistryReader is the slice of the registry client an export needs.
type RegistryReader interface {
	ListPackages(ctx context.Context, registryURL, scope string) (map[string][]string, error)
	FetchMetadata(ctx context.Context, registryURL, name string, timeout time.Duration) (*registry.PackageMetadata, error)
}

// ExportOptions tunes an export.
type ExportOptions struct {
	// Scope restricts the export to one namespace, e.g. "@corp".
	Scope string
	// Concurrency bounds parallel metadata fetches. Zero means 8.
	Concurrency int
}

// Exporter captures registry snapshots.
type Exporter struct {
	client RegistryReader
	logger *slog.Logger
}

// NewExporter creates an Exporter backed by client.
func NewExporter(client RegistryReader) *Exporter {
	return &Exporter{
		client: client,
		logger: log.WithComponent("snapshot"),
	}
}

// Export lists the registry and enriches each listed name with its full
// version set from per-package metadata. Listing endpoints often carry
// only one version per name (or none), so the metadata pass is what
// makes the snapshot trustworthy for diffing.
//
// A per-name metadata failure does not fail the export: the name keeps
// whatever versions the listing reported, and the degradation is
// logged. Only a failed listing aborts.
func (e *Exporter) Export(ctx context.Context, registryURL string, opts ExportOptions) (*Snapshot, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	listed, err := e.client.ListPackages(ctx, registryURL, opts.Scope)
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}

	names := make([]string, 0, len(listed))
	for name := range listed {
		names = append(names, name)
	}
	sort.Strings(names)

	results := pool.Map(ctx, names, concurrency, func(ctx context.Context, name string) ([]string, error) {
		meta, err := e.client.FetchMetadata(ctx, registryURL, name, metadataTimeout)
		if err != nil {
			return nil, err
		}
		versions := make([]string, 0, len(meta.Versions))
		for v := range meta.Versions {
			versions = append(versions, v)
		}
		return versions, nil
	})

	packages := make(map[string][]string, len(names))
	partial := 0
	for i, res := range results {
		name := names[i]
		versions := res.Value
		if res.Err != nil {
			partial++
			e.logger.Warn("metadata fetch failed, keeping listing versions",
				"package", name, "error", res.Err)
			versions = listed[name]
		}
		if versions == nil {
			versions = []string{}
		}
		sortVersions(versions)
		packages[name] = versions
	}

	e.logger.Info("snapshot exported",
		"registry", registryURL, "packages", len(packages), "partial", partial)

	return &Snapshot{
		FormatVersion: FormatVersion,
		CapturedAt:    time.Now().UTC(),
		RegistryURL:   registryURL,
		Packages:      packages,
	}, nil
}
