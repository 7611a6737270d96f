// Package registry implements the HTTP read path of an npm-compatible
// registry: per-package metadata fetches and whole-registry listings,
// with bearer-token auth attached from a per-registry token cache.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ReemX/pnpm-airgap/internal/log"
)

// maxRedirects bounds how many redirect hops a metadata request follows.
const maxRedirects = 5

// maxBodyBytes caps how much of a registry response we are willing to
// read. Registry documents for huge packages run to megabytes; anything
// past this is pathological.
const maxBodyBytes = 64 << 20 // 64 MiB

// Client talks to a registry's read endpoints.
type Client struct {
	httpClient *http.Client
	tokens     *TokenProvider
	logger     *slog.Logger
}

// NewClient creates a Client. tokens may be nil for anonymous access.
func NewClient(tokens *TokenProvider) *Client {
	return &Client{
		httpClient: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		tokens: tokens,
		logger: log.WithComponent("registry"),
	}
}

// FetchMetadata GETs the package document for name from registryURL.
// A 404 or auth failure surfaces as *HTTPError; a 200 with an
// undecodable body surfaces as *ParseError; transport failures are
// returned as-is.
func (c *Client) FetchMetadata(ctx context.Context, registryURL, name string, timeout time.Duration) (*PackageMetadata, error) {
	reqURL := metadataURL(registryURL, name)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.attachAuth(req, registryURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: reqURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read metadata body for %s: %w", name, err)
	}

	var meta PackageMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, &ParseError{URL: reqURL, Err: err}
	}
	return &meta, nil
}

// attachAuth sets the Authorization header if a token is available for
// the registry. Token resolution failures are logged and skipped; the
// request then proceeds anonymously and the registry's 401 tells the
// caller what it needs to know.
func (c *Client) attachAuth(req *http.Request, registryURL string) {
	if c.tokens == nil {
		return
	}
	token, err := c.tokens.Token(registryURL)
	if err != nil {
		c.logger.Warn("token resolution failed, proceeding anonymously",
			"registry", registryURL, "error", err)
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// metadataURL builds the package document URL. Scoped names keep their
// "@" but the scope separator is percent-encoded (@scope%2Fname),
// matching npm client behavior.
func metadataURL(registryURL, name string) string {
	return strings.TrimSuffix(registryURL, "/") + "/" + url.PathEscape(name)
}
