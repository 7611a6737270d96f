package registry

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TokenResolver produces a bearer token for a registry URL. The empty
// string means anonymous access.
type TokenResolver func(registryURL string) (string, error)

// TokenProvider lazily resolves and caches per-registry auth tokens so
// that concurrent workers do not re-read credentials on every request.
// Entries expire after the configured TTL and are re-resolved on demand.
type TokenProvider struct {
	cache   *gocache.Cache
	resolve TokenResolver
}

// NewTokenProvider creates a TokenProvider with the given resolution
// function and cache TTL.
func NewTokenProvider(resolve TokenResolver, ttl time.Duration) *TokenProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenProvider{
		cache:   gocache.New(ttl, 2*ttl),
		resolve: resolve,
	}
}

// StaticToken returns a resolver that always yields the same token.
func StaticToken(token string) TokenResolver {
	return func(string) (string, error) { return token, nil }
}

// Token returns the cached token for registryURL, resolving and caching
// it on first use. Resolution errors are not cached.
func (p *TokenProvider) Token(registryURL string) (string, error) {
	if v, ok := p.cache.Get(registryURL); ok {
		return v.(string), nil
	}
	token, err := p.resolve(registryURL)
	if err != nil {
		return "", err
	}
	p.cache.Set(registryURL, token, gocache.DefaultExpiration)
	return token, nil
}

// Clear drops all cached tokens.
func (p *TokenProvider) Clear() {
	p.cache.Flush()
}
