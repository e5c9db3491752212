// Package config provides configuration loading and management for volpatch.
// It handles loading patch geometry from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"volpatch/pkg/patch"
	"volpatch/pkg/tensor"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Patch geometry parameters
	Patch struct {
		// ImageSize is the uniform spatial edge length of the sampled image window
		ImageSize int `yaml:"imageSize"`

		// InfoLength selects the sampling rank: 4 for 2D, 5 for 2.5D, 6 for 3D
		InfoLength int `yaml:"infoLength"`

		// LabelSize is the edge length of the label window; 0 disables labels
		LabelSize int `yaml:"labelSize"`

		// WeightMapSize is the edge length of the weight-map window; 0 disables it
		WeightMapSize int `yaml:"weightMapSize"`

		// Element type names as accepted by tensor.ParseDType
		ImageDType     string `yaml:"imageDtype"`
		LabelDType     string `yaml:"labelDtype"`
		WeightMapDType string `yaml:"weightMapDtype"`

		// Channel counts for the trailing modality dimension
		NumImageModality int `yaml:"numImageModality"`
		NumLabelModality int `yaml:"numLabelModality"`
		NumWeightMap     int `yaml:"numWeightMap"`
	} `yaml:"patch"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default patch geometry: 3D sampling with a matching label window
	cfg.Patch.ImageSize = 32
	cfg.Patch.InfoLength = 6
	cfg.Patch.LabelSize = 32
	cfg.Patch.WeightMapSize = 0

	cfg.Patch.ImageDType = "float32"
	cfg.Patch.LabelDType = "int64"
	cfg.Patch.WeightMapDType = "float32"

	cfg.Patch.NumImageModality = 1
	cfg.Patch.NumLabelModality = 1
	cfg.Patch.NumWeightMap = 1

	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
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

// SaveConfig saves the configuration to a YAML file
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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// PatchConfig converts the file form into the patch construction
// parameters, resolving element-type names and expanding the uniform edge
// lengths into spatial shapes.
func (c *Config) PatchConfig() (patch.Config, error) {
	pc := patch.DefaultConfig()
	pc.InfoLength = c.Patch.InfoLength

	rank, err := patch.RankFromInfoLength(c.Patch.InfoLength)
	if err != nil {
		return patch.Config{}, err
	}

	edge := func(size int) []int {
		shape := make([]int, rank.NumWindow())
		for i := range shape {
			shape[i] = size
		}
		return shape
	}

	pc.ImageShape = edge(c.Patch.ImageSize)
	if c.Patch.LabelSize > 0 {
		pc.LabelShape = edge(c.Patch.LabelSize)
	}
	if c.Patch.WeightMapSize > 0 {
		pc.WeightMapShape = edge(c.Patch.WeightMapSize)
	}

	if pc.ImageDType, err = tensor.ParseDType(c.Patch.ImageDType); err != nil {
		return patch.Config{}, fmt.Errorf("image dtype: %w", err)
	}
	if pc.LabelDType, err = tensor.ParseDType(c.Patch.LabelDType); err != nil {
		return patch.Config{}, fmt.Errorf("label dtype: %w", err)
	}
	if pc.WeightMapDType, err = tensor.ParseDType(c.Patch.WeightMapDType); err != nil {
		return patch.Config{}, fmt.Errorf("weight map dtype: %w", err)
	}

	pc.NumImageModality = c.Patch.NumImageModality
	pc.NumLabelModality = c.Patch.NumLabelModality
	pc.NumWeightMap = c.Patch.NumWeightMap

	return pc, nil
}
