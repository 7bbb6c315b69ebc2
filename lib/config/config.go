// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Strongroom components.
//
// Configuration is loaded from a single file specified by:
//   - STRONGROOM_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections (development,
// staging, production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Strongroom.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Keystore configures the key storage backend.
	Keystore KeystoreConfig `yaml:"keystore"`

	// Escrow configures local and remote escrow services.
	Escrow EscrowConfig `yaml:"escrow"`

	// Containers configures container persistence.
	Containers ContainersConfig `yaml:"containers"`

	// Aggregator configures the record aggregator.
	Aggregator AggregatorConfig `yaml:"aggregator"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths      *PathsConfig      `yaml:"paths,omitempty"`
	Keystore   *KeystoreConfig   `yaml:"keystore,omitempty"`
	Escrow     *EscrowConfig     `yaml:"escrow,omitempty"`
	Containers *ContainersConfig `yaml:"containers,omitempty"`
	Aggregator *AggregatorConfig `yaml:"aggregator,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Strongroom data.
	Root string `yaml:"root"`

	// Keystore is where the key storage backend keeps its files.
	// Default: ${STRONGROOM_ROOT}/keys
	Keystore string `yaml:"keystore"`

	// Containers is where encrypted containers are written.
	// Default: ${STRONGROOM_ROOT}/containers
	Containers string `yaml:"containers"`

	// Policies is the directory containing policy documents.
	// Default: ${STRONGROOM_ROOT}/policies
	Policies string `yaml:"policies"`
}

// KeystoreConfig configures the key storage backend.
type KeystoreConfig struct {
	// Backend selects the storage implementation.
	// Values: "filesystem", "sqlite", "memory"
	// Default: filesystem
	Backend string `yaml:"backend"`

	// PassphraseFile is a file whose contents protect private keys at
	// rest in the filesystem backend. Empty means keys are stored
	// unencrypted, which Validate rejects in production.
	PassphraseFile string `yaml:"passphrase_file"`
}

// EscrowConfig configures local and remote escrow services.
type EscrowConfig struct {
	// ListenAddr is the address strongroom-escrowd binds to.
	// Default: 127.0.0.1:8732
	ListenAddr string `yaml:"listen_addr"`

	// Remotes lists endpoints of remote escrow services this host may
	// delegate key layers to. Each entry must be an absolute http or
	// https URL.
	Remotes []string `yaml:"remotes"`

	// RequestTimeout bounds each remote escrow call.
	// Default: 30s
	RequestTimeout string `yaml:"request_timeout"`
}

// ContainersConfig configures container persistence.
type ContainersConfig struct {
	// OffloadThreshold is the payload size in bytes above which the
	// encrypted payload is written to a sidecar file instead of being
	// embedded in the container document. Zero or negative disables
	// offloading; every payload stays inline.
	// Default: 1048576 (1 MiB)
	OffloadThreshold int64 `yaml:"offload_threshold"`
}

// AggregatorConfig configures the record aggregator.
type AggregatorConfig struct {
	// MaxWindow is the time span a single container may cover before
	// the buffered records are flushed.
	// Default: 1h
	MaxWindow string `yaml:"max_window"`

	// DefaultPolicy is the policy document applied to flushed
	// containers, relative to Paths.Policies unless absolute.
	// Default: default.jsonc
	DefaultPolicy string `yaml:"default_policy"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "strongroom")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:       defaultRoot,
			Keystore:   filepath.Join(defaultRoot, "keys"),
			Containers: filepath.Join(defaultRoot, "containers"),
			Policies:   filepath.Join(defaultRoot, "policies"),
		},
		Keystore: KeystoreConfig{
			Backend:        "filesystem",
			PassphraseFile: "",
		},
		Escrow: EscrowConfig{
			ListenAddr:     "127.0.0.1:8732",
			Remotes:        nil,
			RequestTimeout: "30s",
		},
		Containers: ContainersConfig{
			OffloadThreshold: 1 << 20,
		},
		Aggregator: AggregatorConfig{
			MaxWindow:     "1h",
			DefaultPolicy: "default.jsonc",
		},
	}
}

// Load loads configuration from STRONGROOM_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if STRONGROOM_CONFIG is not set, this
// fails. This ensures deterministic, auditable configuration with no hidden
// overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("STRONGROOM_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("STRONGROOM_CONFIG environment variable not set; " +
			"set it to the path of your strongroom.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Keystore != "" {
			c.Paths.Keystore = overrides.Paths.Keystore
		}
		if overrides.Paths.Containers != "" {
			c.Paths.Containers = overrides.Paths.Containers
		}
		if overrides.Paths.Policies != "" {
			c.Paths.Policies = overrides.Paths.Policies
		}
	}

	if overrides.Keystore != nil {
		if overrides.Keystore.Backend != "" {
			c.Keystore.Backend = overrides.Keystore.Backend
		}
		if overrides.Keystore.PassphraseFile != "" {
			c.Keystore.PassphraseFile = overrides.Keystore.PassphraseFile
		}
	}

	if overrides.Escrow != nil {
		if overrides.Escrow.ListenAddr != "" {
			c.Escrow.ListenAddr = overrides.Escrow.ListenAddr
		}
		if overrides.Escrow.Remotes != nil {
			c.Escrow.Remotes = overrides.Escrow.Remotes
		}
		if overrides.Escrow.RequestTimeout != "" {
			c.Escrow.RequestTimeout = overrides.Escrow.RequestTimeout
		}
	}

	if overrides.Containers != nil {
		if overrides.Containers.OffloadThreshold != 0 {
			c.Containers.OffloadThreshold = overrides.Containers.OffloadThreshold
		}
	}

	if overrides.Aggregator != nil {
		if overrides.Aggregator.MaxWindow != "" {
			c.Aggregator.MaxWindow = overrides.Aggregator.MaxWindow
		}
		if overrides.Aggregator.DefaultPolicy != "" {
			c.Aggregator.DefaultPolicy = overrides.Aggregator.DefaultPolicy
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"STRONGROOM_ROOT": c.Paths.Root,
		"HOME":            os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["STRONGROOM_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Keystore = expandVars(c.Paths.Keystore, vars)
	c.Paths.Containers = expandVars(c.Paths.Containers, vars)
	c.Paths.Policies = expandVars(c.Paths.Policies, vars)
	c.Keystore.PassphraseFile = expandVars(c.Keystore.PassphraseFile, vars)
	c.Aggregator.DefaultPolicy = expandVars(c.Aggregator.DefaultPolicy, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	backends := []string{"filesystem", "sqlite", "memory"}
	if !contains(backends, c.Keystore.Backend) {
		errs = append(errs, fmt.Errorf("keystore.backend must be one of: %v", backends))
	}
	if c.Environment == Production {
		if c.Keystore.Backend == "memory" {
			errs = append(errs, fmt.Errorf("keystore.backend memory is not allowed in production"))
		}
		if c.Keystore.Backend == "filesystem" && c.Keystore.PassphraseFile == "" {
			errs = append(errs, fmt.Errorf("keystore.passphrase_file is required in production"))
		}
	}

	if c.Escrow.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("escrow.listen_addr is required"))
	}
	for _, remote := range c.Escrow.Remotes {
		if err := validateEndpoint(remote); err != nil {
			errs = append(errs, fmt.Errorf("escrow.remotes: %w", err))
		}
	}
	if _, err := time.ParseDuration(c.Escrow.RequestTimeout); err != nil {
		errs = append(errs, fmt.Errorf("escrow.request_timeout: %w", err))
	}

	if _, err := time.ParseDuration(c.Aggregator.MaxWindow); err != nil {
		errs = append(errs, fmt.Errorf("aggregator.max_window: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint %q must be an absolute http or https URL", endpoint)
	}
	return nil
}

// RequestTimeoutDuration returns the parsed remote escrow request timeout.
// Call Validate first; an unparsable value falls back to 30 seconds.
func (c *Config) RequestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Escrow.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// MaxWindowDuration returns the parsed aggregator window span.
// Call Validate first; an unparsable value falls back to one hour.
func (c *Config) MaxWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.Aggregator.MaxWindow)
	if err != nil {
		return time.Hour
	}
	return d
}

// PolicyPath resolves the configured default policy document to an
// absolute path, treating relative values as relative to Paths.Policies.
func (c *Config) PolicyPath() string {
	if filepath.IsAbs(c.Aggregator.DefaultPolicy) {
		return c.Aggregator.DefaultPolicy
	}
	return filepath.Join(c.Paths.Policies, c.Aggregator.DefaultPolicy)
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Keystore,
		c.Paths.Containers,
		c.Paths.Policies,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
