package registry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReemX/pnpm-airgap/internal/registry"
	"github.com/ReemX/pnpm-airgap/internal/registrytest"
)

func TestFetchMetadata(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddPackage("left-pad", "1.3.0", "1.2.0")

	client := registry.NewClient(nil)
	meta, err := client.FetchMetadata(context.Background(), srv.URL(), "left-pad", 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, "left-pad", meta.Name)
	assert.True(t, meta.HasVersion("1.3.0"))
	assert.True(t, meta.HasVersion("1.2.0"))
	assert.False(t, meta.HasVersion("9.9.9"))
}

func TestFetchMetadataScopedName(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddPackage("@corp/widgets", "2.0.0")

	client := registry.NewClient(nil)
	meta, err := client.FetchMetadata(context.Background(), srv.URL(), "@corp/widgets", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, meta.HasVersion("2.0.0"))
}

func TestFetchMetadataNotFound(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()

	client := registry.NewClient(nil)
	_, err := client.FetchMetadata(context.Background(), srv.URL(), "never-published", 5*time.Second)

	var httpErr *registry.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.True(t, httpErr.IsNotFound())
	assert.False(t, httpErr.IsAuth())
}

func TestFetchMetadataAuth(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddPackage("secret-pkg", "1.0.0")
	srv.RequireToken("s3cr3t")

	t.Run("without token", func(t *testing.T) {
		client := registry.NewClient(nil)
		_, err := client.FetchMetadata(context.Background(), srv.URL(), "secret-pkg", 5*time.Second)

		var httpErr *registry.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.True(t, httpErr.IsAuth())
	})

	t.Run("with token", func(t *testing.T) {
		tokens := registry.NewTokenProvider(registry.StaticToken("s3cr3t"), time.Minute)
		client := registry.NewClient(tokens)
		meta, err := client.FetchMetadata(context.Background(), srv.URL(), "secret-pkg", 5*time.Second)
		require.NoError(t, err)
		assert.True(t, meta.HasVersion("1.0.0"))
	})
}

func TestFetchMetadataMalformedBody(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddPackage("broken-pkg", "1.0.0")
	srv.ServeGarbage("broken-pkg")

	client := registry.NewClient(nil)
	_, err := client.FetchMetadata(context.Background(), srv.URL(), "broken-pkg", 5*time.Second)

	var parseErr *registry.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestFetchMetadataServerError(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddPackage("flaky-pkg", "1.0.0")
	srv.FailNext("flaky-pkg", 1)

	client := registry.NewClient(nil)
	_, err := client.FetchMetadata(context.Background(), srv.URL(), "flaky-pkg", 5*time.Second)

	var httpErr *registry.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.StatusCode)
}

func TestFetchMetadataUnreachable(t *testing.T) {
	client := registry.NewClient(nil)
	_, err := client.FetchMetadata(context.Background(), "http://127.0.0.1:1", "any-pkg", 2*time.Second)
	require.Error(t, err)

	var httpErr *registry.HTTPError
	assert.False(t, errors.As(err, &httpErr))
}

func TestListPackages(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddPackage("alpha", "1.0.0", "1.1.0")
	srv.AddPackage("@corp/beta", "2.0.0")

	client := registry.NewClient(nil)
	packages, err := client.ListPackages(context.Background(), srv.URL(), "")
	require.NoError(t, err)

	require.Len(t, packages, 2)
	assert.ElementsMatch(t, []string{"1.0.0", "1.1.0"}, packages["alpha"])
	assert.Equal(t, []string{"2.0.0"}, packages["@corp/beta"])
}

func TestListPackagesScopeFilter(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddPackage("alpha", "1.0.0")
	srv.AddPackage("@corp/beta", "2.0.0")
	srv.AddPackage("@other/gamma", "3.0.0")

	client := registry.NewClient(nil)
	packages, err := client.ListPackages(context.Background(), srv.URL(), "@corp")
	require.NoError(t, err)

	require.Len(t, packages, 1)
	assert.Contains(t, packages, "@corp/beta")
}

func TestListPackagesProbeFallback(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddPackage("alpha", "1.0.0")
	srv.DisableListing("/-/all")

	client := registry.NewClient(nil)
	packages, err := client.ListPackages(context.Background(), srv.URL(), "")
	require.NoError(t, err)
	assert.Contains(t, packages, "alpha")
}

func TestListPackagesAllProbesFail(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.DisableListing("/-/all")
	srv.DisableListing("/-/v1/search")
	srv.DisableListing("/_all_docs")

	client := registry.NewClient(nil)
	_, err := client.ListPackages(context.Background(), srv.URL(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all listing endpoints failed")
}

func TestTokenProviderCachesResolution(t *testing.T) {
	calls := 0
	tokens := registry.NewTokenProvider(func(registryURL string) (string, error) {
		calls++
		return "tok-" + registryURL, nil
	}, time.Minute)

	tok1, err := tokens.Token("https://a.example")
	require.NoError(t, err)
	tok2, err := tokens.Token("https://a.example")
	require.NoError(t, err)

	assert.Equal(t, tok1, tok2)
	assert.Equal(t, 1, calls)

	tokens.Clear()
	_, err = tokens.Token("https://a.example")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTokenProviderResolutionErrorNotCached(t *testing.T) {
	calls := 0
	tokens := registry.NewTokenProvider(func(string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("credentials locked")
		}
		return "ok", nil
	}, time.Minute)

	_, err := tokens.Token("https://a.example")
	require.Error(t, err)

	tok, err := tokens.Token("https://a.example")
	require.NoError(t, err)
	assert.Equal(t, "ok", tok)
}
