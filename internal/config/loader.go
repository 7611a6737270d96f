package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file. Values are laid
// over Defaults(), ${ENV_VAR} references are expanded, and the result is
// validated before being returned.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	data = expandEnvVars(data)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", absPath, err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR} references with values from the
// environment. Unset variables expand to the empty string.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// applyDefaults backfills zero values that yaml.Unmarshal may have
// clobbered when a section was present but a field was not.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = def.Service.LogLevel
	}
	if cfg.Check.Concurrency <= 0 {
		cfg.Check.Concurrency = def.Check.Concurrency
	}
	if cfg.Check.MaxRetries <= 0 {
		cfg.Check.MaxRetries = def.Check.MaxRetries
	}
	if cfg.Check.CacheSize <= 0 {
		cfg.Check.CacheSize = def.Check.CacheSize
	}
	if cfg.Check.CacheEvictBlock <= 0 {
		cfg.Check.CacheEvictBlock = def.Check.CacheEvictBlock
	}
	if cfg.Publish.Concurrency <= 0 {
		cfg.Publish.Concurrency = def.Publish.Concurrency
	}
	if cfg.Publish.MaxRetries <= 0 {
		cfg.Publish.MaxRetries = def.Publish.MaxRetries
	}
	if cfg.Publish.BaseTimeout <= 0 {
		cfg.Publish.BaseTimeout = def.Publish.BaseTimeout
	}
	if cfg.Publish.PerMiBTimeout <= 0 {
		cfg.Publish.PerMiBTimeout = def.Publish.PerMiBTimeout
	}
	if cfg.Publish.MaxTimeout <= 0 {
		cfg.Publish.MaxTimeout = def.Publish.MaxTimeout
	}
	if cfg.Reconcile.Concurrency <= 0 {
		cfg.Reconcile.Concurrency = def.Reconcile.Concurrency
	}
	if cfg.Registry.TokenTTL <= 0 {
		cfg.Registry.TokenTTL = def.Registry.TokenTTL
	}
	if cfg.Report.MaxFailures <= 0 {
		cfg.Report.MaxFailures = def.Report.MaxFailures
	}
	if cfg.Report.Path == "" {
		cfg.Report.Path = def.Report.Path
	}
	if cfg.Snapshot.Path == "" {
		cfg.Snapshot.Path = def.Snapshot.Path
	}
	if cfg.History.Path == "" {
		cfg.History.Path = def.History.Path
	}
	if cfg.Staging.Dir == "" {
		cfg.Staging.Dir = def.Staging.Dir
	}
}

// validate rejects configurations the engine cannot run with.
func validate(cfg *Config) error {
	if cfg.Registry.URL == "" {
		return fmt.Errorf("registry.url is required")
	}
	u, err := url.Parse(cfg.Registry.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("registry.url %q is not a valid http(s) URL", cfg.Registry.URL)
	}
	if cfg.Check.CacheEvictBlock > cfg.Check.CacheSize {
		return fmt.Errorf("check.cache_evict_block (%d) exceeds check.cache_size (%d)",
			cfg.Check.CacheEvictBlock, cfg.Check.CacheSize)
	}
	if cfg.Publish.BaseTimeout > cfg.Publish.MaxTimeout {
		return fmt.Errorf("publish.base_timeout (%s) exceeds publish.max_timeout (%s)",
			cfg.Publish.BaseTimeout, cfg.Publish.MaxTimeout)
	}
	return nil
}
