// Package config provides configuration loading and management for brainparc.
// It handles loading run configuration from YAML files and provides default
// values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// AtlasEntry selects an atlas for a run, either by name (discovered in the
// recon outputs) or by explicit path.
type AtlasEntry struct {
	// Name is the atlas identifier used in output filenames
	Name string `yaml:"name"`

	// Path optionally points at the atlas NIfTI volume; empty means the
	// atlas is expected among the discovered inputs
	Path string `yaml:"path"`

	// LUT optionally points at a two-column TSV of region names
	LUT string `yaml:"lut"`

	// Resolution is the BIDS "res-" entity, if any
	Resolution string `yaml:"resolution"`

	// Space is the anatomical space the atlas is aligned to
	Space string `yaml:"space"`
}

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Input parameters
	Input struct {
		// Root is the directory containing recon derivative outputs
		Root string `yaml:"root"`

		// Subjects are the subject labels to include (without "sub-")
		Subjects []string `yaml:"subjects"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Root is the destination for parcellation tables
		Root string `yaml:"root"`

		// WriteReports controls whether a run summary is written
		WriteReports bool `yaml:"writeReports"`

		// Verbose controls the level of progress output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Parcellation parameters
	Parcellation struct {
		// Metrics are the per-ROI statistics to compute; names may be
		// canonical ("nanmean") or legacy aliases ("mean")
		Metrics []string `yaml:"metrics"`

		// ResampleTarget decides which grid is resampled on shape
		// mismatch: "labels"/"atlas" or "data"/"scalar"; "none" fails
		// on mismatched shapes
		ResampleTarget string `yaml:"resampleTarget"`

		// Mask optionally restricts computation: a preset token
		// ("gm"/"wm"/"csf") or a path to a mask volume
		Mask string `yaml:"mask"`

		// PresetMaskDir is where stock preset masks are read from
		PresetMaskDir string `yaml:"presetMaskDir"`

		// Spaces limits atlas/scalar pairing to these anatomical
		// spaces; empty means no restriction
		Spaces []string `yaml:"spaces"`

		// NumCores specifies how many jobs run concurrently
		NumCores int `yaml:"numCores"`
	} `yaml:"parcellation"`

	// Atlases are the atlases requested for the run
	Atlases []AtlasEntry `yaml:"atlases"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default parcellation parameters
	cfg.Parcellation.Metrics = []string{"mean", "median"}
	cfg.Parcellation.ResampleTarget = "labels"
	cfg.Parcellation.Spaces = []string{"MNI152NLin2009cAsym", "ACPC"}
	cfg.Parcellation.NumCores = runtime.NumCPU()

	// Set default output parameters
	cfg.Output.WriteReports = true
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate checks that the required run fields are present.
func (cfg *Config) Validate() error {
	if cfg.Input.Root == "" {
		return fmt.Errorf("missing required configuration field: 'input.root'")
	}
	if cfg.Output.Root == "" {
		return fmt.Errorf("missing required configuration field: 'output.root'")
	}
	if len(cfg.Input.Subjects) == 0 {
		return fmt.Errorf("missing required configuration field: 'input.subjects'")
	}
	return nil
}

// EnsureOutputRoot creates the output root directory if needed and returns
// its path.
func (cfg *Config) EnsureOutputRoot() (string, error) {
	if err := os.MkdirAll(cfg.Output.Root, 0755); err != nil {
		return "", fmt.Errorf("error creating output root: %w", err)
	}
	return cfg.Output.Root, nil
}
