package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMinimal(t *testing.T) {
	path := writeConfig(t, `
registry:
  url: https://registry.internal:4873
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://registry.internal:4873", cfg.Registry.URL)
	// Defaults fill everything else.
	assert.Equal(t, "INFO", cfg.Service.LogLevel)
	assert.Equal(t, 4, cfg.Publish.Concurrency)
	assert.Equal(t, 3, cfg.Publish.MaxRetries)
	assert.Equal(t, 8, cfg.Check.Concurrency)
	assert.Equal(t, 4096, cfg.Check.CacheSize)
	assert.Equal(t, 60*time.Second, cfg.Publish.BaseTimeout)
	assert.Equal(t, "./registry-snapshot.json", cfg.Snapshot.Path)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
service:
  log_level: DEBUG
registry:
  url: http://localhost:4873
  scope: "@corp"
staging:
  dir: /var/staged
publish:
  concurrency: 2
  max_retries: 5
  dry_run: true
  slow_artifacts:
    - "@corp/huge-binaries"
check:
  cache_size: 128
  cache_evict_block: 16
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Service.LogLevel)
	assert.Equal(t, "@corp", cfg.Registry.Scope)
	assert.Equal(t, "/var/staged", cfg.Staging.Dir)
	assert.Equal(t, 2, cfg.Publish.Concurrency)
	assert.Equal(t, 5, cfg.Publish.MaxRetries)
	assert.True(t, cfg.Publish.DryRun)
	assert.Equal(t, []string{"@corp/huge-binaries"}, cfg.Publish.SlowArtifacts)
	assert.Equal(t, 128, cfg.Check.CacheSize)
	assert.Equal(t, 16, cfg.Check.CacheEvictBlock)
	// Partially-specified sections still get defaults for missing fields.
	assert.Equal(t, 8, cfg.Check.Concurrency)
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("TEST_NPM_TOKEN", "secret-token-value")

	path := writeConfig(t, `
registry:
  url: https://registry.internal:4873
  token: ${TEST_NPM_TOKEN}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token-value", cfg.Registry.Token)
}

func TestLoadUnsetEnvExpandsEmpty(t *testing.T) {
	path := writeConfig(t, `
registry:
  url: https://registry.internal:4873
  token: ${DEFINITELY_NOT_SET_ANYWHERE_12345}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Registry.Token)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing registry url",
			content: "service:\n  log_level: INFO\n",
			wantErr: "registry.url is required",
		},
		{
			name:    "bad registry url",
			content: "registry:\n  url: not-a-url\n",
			wantErr: "not a valid http(s) URL",
		},
		{
			name: "evict block larger than cache",
			content: `
registry:
  url: http://localhost:4873
check:
  cache_size: 10
  cache_evict_block: 20
`,
			wantErr: "cache_evict_block",
		},
		{
			name: "base timeout exceeds max",
			content: `
registry:
  url: http://localhost:4873
publish:
  base_timeout: 20m
  max_timeout: 1m
`,
			wantErr: "base_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
