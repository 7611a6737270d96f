package config

import "time"

// Config represents the complete pnpm-airgap configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Registry  RegistryConfig  `yaml:"registry"`
	Staging   StagingConfig   `yaml:"staging"`
	Check     CheckConfig     `yaml:"check"`
	Publish   PublishConfig   `yaml:"publish"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Report    ReportConfig    `yaml:"report"`
	History   HistoryConfig   `yaml:"history"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	LogLevel string `yaml:"log_level"`
}

// RegistryConfig defines the destination registry and its credentials.
type RegistryConfig struct {
	URL string `yaml:"url"`
	// Token is the bearer token for the registry. Supports ${ENV_VAR}
	// expansion so secrets stay out of the config file.
	Token string `yaml:"token,omitempty"`
	// TokenTTL bounds how long a resolved token is reused before being
	// re-read from config.
	TokenTTL time.Duration `yaml:"token_ttl,omitempty"`
	// Scope optionally restricts snapshot export to one namespace
	// (e.g. "@corp").
	Scope string `yaml:"scope,omitempty"`
}

// StagingConfig locates the batch of packed tarballs to transfer.
type StagingConfig struct {
	Dir string `yaml:"dir"`
}

// CheckConfig tunes the existence pre-check pass.
type CheckConfig struct {
	Concurrency     int `yaml:"concurrency"`
	MaxRetries      int `yaml:"max_retries"`
	CacheSize       int `yaml:"cache_size"`
	CacheEvictBlock int `yaml:"cache_evict_block"`
}

// PublishConfig tunes the publish pass.
type PublishConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	MaxRetries    int           `yaml:"max_retries"`
	DryRun        bool          `yaml:"dry_run"`
	BaseTimeout   time.Duration `yaml:"base_timeout"`
	PerMiBTimeout time.Duration `yaml:"per_mib_timeout"`
	MaxTimeout    time.Duration `yaml:"max_timeout"`
	// SlowArtifacts lists package names that get a raised timeout floor.
	SlowArtifacts []string `yaml:"slow_artifacts,omitempty"`
}

// ReconcileConfig tunes the post-batch false-negative re-check.
type ReconcileConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// SnapshotConfig locates the persisted registry snapshot.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// ReportConfig controls run report output.
type ReportConfig struct {
	Path string `yaml:"path"`
	// MaxFailures caps how many failures the summary enumerates.
	MaxFailures int `yaml:"max_failures"`
}

// HistoryConfig locates the sqlite run-history database.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			LogLevel: "INFO",
		},
		Registry: RegistryConfig{
			TokenTTL: 1 * time.Hour,
		},
		Staging: StagingConfig{
			Dir: "./staged",
		},
		Check: CheckConfig{
			Concurrency:     8,
			MaxRetries:      3,
			CacheSize:       4096,
			CacheEvictBlock: 256,
		},
		Publish: PublishConfig{
			Concurrency:   4,
			MaxRetries:    3,
			BaseTimeout:   60 * time.Second,
			PerMiBTimeout: 5 * time.Second,
			MaxTimeout:    10 * time.Minute,
		},
		Reconcile: ReconcileConfig{
			Concurrency: 4,
		},
		Snapshot: SnapshotConfig{
			Path: "./registry-snapshot.json",
		},
		Report: ReportConfig{
			Path:        "./publish-report.json",
			MaxFailures: 20,
		},
		History: HistoryConfig{
			Path: "./history.db",
		},
	}
}
