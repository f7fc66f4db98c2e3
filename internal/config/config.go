// Package config provides configuration loading and management for the KYC
// status server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the prefix for all environment variables read by the server
	EnvPrefix = "KYC"

	// EnvAPIKey is the environment variable carrying the Airtable API key
	EnvAPIKey = "KYC_AIRTABLE_API_KEY"

	// DefaultAddress is the default listen address
	DefaultAddress = ":8080"

	// DefaultBaseURL is the Airtable REST API endpoint
	DefaultBaseURL = "https://api.airtable.com/v0"

	// DefaultBaseID is the Airtable base holding verification records
	DefaultBaseID = "appc0ZVhbKj8hMLvH"

	// DefaultTableID is the verification records table within the base
	DefaultTableID = "tblIxT2t2gHoZMucn"

	// DefaultView is the Airtable view queried when none is configured
	DefaultView = "Grid view"

	// DefaultWalletField is the field the account identifier is matched against
	DefaultWalletField = "Wallet Address"

	// DefaultMaxRecords caps how many matching rows are requested upstream
	DefaultMaxRecords = 5

	// DefaultTimeout bounds the outbound Airtable call
	DefaultTimeout = 10 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Address is the listen address for the HTTP server
	Address string `yaml:"address,omitempty"`

	// Airtable configures the upstream verification record store
	Airtable AirtableConfig `yaml:"airtable"`
}

// AirtableConfig defines the Airtable base and table holding verification
// records. The API key is never part of this file; see GetAPIKey.
type AirtableConfig struct {
	// BaseURL is the Airtable API endpoint, overridable for tests
	BaseURL string `yaml:"baseURL,omitempty"`

	// BaseID is the Airtable base identifier (app...)
	BaseID string `yaml:"baseID"`

	// TableID is the table identifier (tbl...) or table name
	TableID string `yaml:"tableID"`

	// View is the Airtable view to query
	View string `yaml:"view,omitempty"`

	// WalletField is the field matched against the account identifier
	WalletField string `yaml:"walletField,omitempty"`

	// MaxRecords caps how many matching rows are requested per lookup
	MaxRecords int `yaml:"maxRecords,omitempty"`

	// Timeout bounds the outbound request (e.g. "10s")
	Timeout string `yaml:"timeout,omitempty"`

	// APIKeyFile is the path to a file containing the Airtable API key.
	// This is the recommended approach for production deployments.
	// The file should contain only the key with optional trailing whitespace.
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`
}

// GetAPIKey returns the Airtable API key using the following priority:
// 1. Read from APIKeyFile if specified
// 2. Read from the KYC_AIRTABLE_API_KEY environment variable
//
// The key from file will have leading/trailing whitespace trimmed.
func (a *AirtableConfig) GetAPIKey() (string, error) {
	// Priority 1: Read from file if specified
	if a.APIKeyFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(a.APIKeyFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read API key from file %s: %w", a.APIKeyFile, err)
		}

		key := strings.TrimSpace(string(data))
		if key == "" {
			return "", fmt.Errorf("API key file %s is empty", a.APIKeyFile)
		}
		return key, nil
	}

	// Priority 2: Check environment variable
	if envKey := os.Getenv(EnvAPIKey); envKey != "" {
		return envKey, nil
	}

	return "", fmt.Errorf(
		"no Airtable API key configured: set apiKeyFile or the %s environment variable", EnvAPIKey,
	)
}

// GetAddress returns the listen address, using the default if not specified
func (c *Config) GetAddress() string {
	if c.Address == "" {
		return DefaultAddress
	}
	return c.Address
}

// GetBaseURL returns the Airtable endpoint, using the default if not specified
func (a *AirtableConfig) GetBaseURL() string {
	if a.BaseURL == "" {
		return DefaultBaseURL
	}
	return a.BaseURL
}

// GetBaseID returns the Airtable base identifier, using the default if not specified
func (a *AirtableConfig) GetBaseID() string {
	if a.BaseID == "" {
		return DefaultBaseID
	}
	return a.BaseID
}

// GetTableID returns the table identifier, using the default if not specified
func (a *AirtableConfig) GetTableID() string {
	if a.TableID == "" {
		return DefaultTableID
	}
	return a.TableID
}

// GetView returns the Airtable view, using the default if not specified
func (a *AirtableConfig) GetView() string {
	if a.View == "" {
		return DefaultView
	}
	return a.View
}

// GetWalletField returns the wallet address field, using the default if not specified
func (a *AirtableConfig) GetWalletField() string {
	if a.WalletField == "" {
		return DefaultWalletField
	}
	return a.WalletField
}

// GetMaxRecords returns the record cap, using the default if not specified
func (a *AirtableConfig) GetMaxRecords() int {
	if a.MaxRecords <= 0 {
		return DefaultMaxRecords
	}
	return a.MaxRecords
}

// GetTimeout returns the outbound request timeout, using the default if not
// specified. The configured value must already have passed validation.
func (a *AirtableConfig) GetTimeout() time.Duration {
	if a.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// LoadConfig loads and parses configuration from a YAML file. Without a
// WithConfigPath option all defaults apply and only the environment is
// consulted.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	config := &Config{}

	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Airtable.MaxRecords < 0 {
		return fmt.Errorf("airtable.maxRecords cannot be negative")
	}

	if c.Airtable.Timeout != "" {
		d, err := time.ParseDuration(c.Airtable.Timeout)
		if err != nil {
			return fmt.Errorf("airtable.timeout is not a valid duration: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("airtable.timeout must be positive")
		}
	}

	return nil
}
