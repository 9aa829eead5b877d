// Manages archive configuration stored in config.yml.

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the configuration file inside the data
// directory.
const ConfigFileName = "config.yml"

// Config stores the settings of one data directory.
// Loaded from config.yml, created with defaults if missing.
type Config struct {
	// Archive is the path of the snapshot zip. Relative paths are resolved
	// from the data directory.
	Archive string `yaml:"archive"`

	// Rebuild tunes snapshot ingestion.
	Rebuild RebuildConfig `yaml:"rebuild"`

	// RateLimits defines rate limiting configuration.
	RateLimits RateLimits `yaml:"rate_limits"`
}

// RebuildConfig tunes snapshot ingestion.
type RebuildConfig struct {
	// Parallelism is the number of stores extracted and indexed concurrently.
	Parallelism int `yaml:"parallelism"`

	// WatchDelay is how long the archive must stay unchanged before a watched
	// rebuild starts.
	WatchDelay time.Duration `yaml:"watch_delay"`
}

// RateLimits defines rate limiting configuration (requests per minute).
type RateLimits struct {
	// ReadRatePerMin limits reads per client IP. 0 means unlimited.
	ReadRatePerMin int `yaml:"read_rate_per_min"`
}

// DefaultConfig returns the configuration written on first load.
func DefaultConfig() Config {
	return Config{
		Archive: "archive.zip",
		Rebuild: RebuildConfig{
			Parallelism: 4,
			WatchDelay:  5 * time.Second,
		},
		RateLimits: RateLimits{
			ReadRatePerMin: 6000,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Archive == "" {
		return errors.New("archive is required")
	}
	if c.Rebuild.Parallelism <= 0 {
		return errors.New("rebuild.parallelism must be positive")
	}
	if c.Rebuild.WatchDelay < 0 {
		return errors.New("rebuild.watch_delay must be non-negative")
	}
	if c.RateLimits.ReadRatePerMin < 0 {
		return errors.New("rate_limits.read_rate_per_min must be non-negative")
	}
	return nil
}

// ArchivePath returns the absolute path of the snapshot zip.
func (c *Config) ArchivePath(dataDir string) string {
	if filepath.IsAbs(c.Archive) {
		return c.Archive
	}
	return filepath.Join(dataDir, c.Archive)
}

// LoadConfig loads configuration from dataDir/config.yml.
// Creates the file with defaults if it doesn't exist.
func LoadConfig(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, ConfigFileName)
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
		}
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/config.yml.
func (c *Config) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, ConfigFileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", ConfigFileName, err)
	}
	return nil
}
