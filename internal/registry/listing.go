package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// listingTimeout bounds each listing probe request.
const listingTimeout = 60 * time.Second

// searchPageSize is the page size for the search-endpoint probe.
const searchPageSize = 250

// ListPackages enumerates package names visible at registryURL, with
// whatever version information the listing endpoint already carries
// (possibly none). Conventional endpoints are probed in order (the
// legacy /-/all dump, the v1 search API, then a CouchDB-style _all_docs)
// and the first one that succeeds wins. scope, when non-empty, filters
// results to names under that namespace.
func (c *Client) ListPackages(ctx context.Context, registryURL, scope string) (map[string][]string, error) {
	probes := []struct {
		name string
		fn   func(context.Context, string) (map[string][]string, error)
	}{
		{"/-/all", c.listAll},
		{"/-/v1/search", c.listSearch},
		{"/_all_docs", c.listAllDocs},
	}

	var lastErr error
	for _, probe := range probes {
		packages, err := probe.fn(ctx, registryURL)
		if err != nil {
			c.logger.Debug("listing probe failed", "probe", probe.name, "error", err)
			lastErr = err
			continue
		}
		c.logger.Info("registry listing succeeded", "probe", probe.name, "packages", len(packages))
		return filterScope(packages, scope), nil
	}
	return nil, fmt.Errorf("all listing endpoints failed: %w", lastErr)
}

// listAll probes the legacy full-dump endpoint. The response maps
// package names to metadata documents; bookkeeping keys (leading "_")
// are skipped. Version information rides along in "versions" or, for
// sparser registries, as the single dist-tags latest.
func (c *Client) listAll(ctx context.Context, registryURL string) (map[string][]string, error) {
	body, err := c.getListing(ctx, registryURL, registryURL+"/-/all")
	if err != nil {
		return nil, err
	}

	var raw map[string]struct {
		Versions map[string]json.RawMessage `json:"versions"`
		DistTags map[string]string          `json:"dist-tags"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse /-/all response: %w", err)
	}

	packages := make(map[string][]string, len(raw))
	for name, meta := range raw {
		if strings.HasPrefix(name, "_") {
			continue
		}
		var versions []string
		for v := range meta.Versions {
			versions = append(versions, v)
		}
		if len(versions) == 0 {
			if latest, ok := meta.DistTags["latest"]; ok && latest != "" {
				versions = append(versions, latest)
			}
		}
		packages[name] = versions
	}
	return packages, nil
}

// listSearch probes the v1 search API, paging until a short page.
func (c *Client) listSearch(ctx context.Context, registryURL string) (map[string][]string, error) {
	packages := make(map[string][]string)
	for from := 0; ; from += searchPageSize {
		u := fmt.Sprintf("%s/-/v1/search?text=%s&size=%d&from=%d",
			strings.TrimSuffix(registryURL, "/"), url.QueryEscape("*"), searchPageSize, from)
		body, err := c.getListing(ctx, registryURL, u)
		if err != nil {
			return nil, err
		}

		var page struct {
			Objects []struct {
				Package struct {
					Name    string `json:"name"`
					Version string `json:"version"`
				} `json:"package"`
			} `json:"objects"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parse search response: %w", err)
		}

		for _, obj := range page.Objects {
			if obj.Package.Name == "" {
				continue
			}
			var versions []string
			if obj.Package.Version != "" {
				versions = []string{obj.Package.Version}
			}
			packages[obj.Package.Name] = versions
		}

		if len(page.Objects) < searchPageSize {
			return packages, nil
		}
	}
}

// listAllDocs probes the CouchDB-style document index. Only names are
// available here; version sets come from the per-name metadata pass.
func (c *Client) listAllDocs(ctx context.Context, registryURL string) (map[string][]string, error) {
	body, err := c.getListing(ctx, registryURL, registryURL+"/_all_docs")
	if err != nil {
		return nil, err
	}

	var docs struct {
		Rows []struct {
			ID string `json:"id"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(body, &docs); err != nil {
		return nil, fmt.Errorf("parse _all_docs response: %w", err)
	}

	packages := make(map[string][]string, len(docs.Rows))
	for _, row := range docs.Rows {
		if row.ID == "" || strings.HasPrefix(row.ID, "_") {
			continue
		}
		packages[row.ID] = nil
	}
	return packages, nil
}

// getListing issues one listing GET and returns the body on a 200.
func (c *Client) getListing(ctx context.Context, registryURL, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, listingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.attachAuth(req, registryURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// filterScope keeps only names under scope (e.g. "@corp"). An empty
// scope keeps everything.
func filterScope(packages map[string][]string, scope string) map[string][]string {
	if scope == "" {
		return packages
	}
	prefix := scope + "/"
	filtered := make(map[string][]string)
	for name, versions := range packages {
		if strings.HasPrefix(name, prefix) {
			filtered[name] = versions
		}
	}
	return filtered
}
