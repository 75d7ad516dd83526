// Package config provides configuration loading for batch conversion jobs.
// It handles loading configuration from YAML files and provides default
// values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"medimg"
)

// Method names a conversion backend.
const (
	MethodNative   = "native"
	MethodDcm2niix = "dcm2niix"
)

// Job describes one DICOM-to-NIfTI conversion.
type Job struct {
	// Input is the directory holding the DICOM series.
	Input string `yaml:"input"`

	// Output is the directory the NIfTI file is written into.
	Output string `yaml:"output"`

	// Name is the output file name; a NIfTI extension is appended when
	// missing.
	Name string `yaml:"name"`
}

// Config represents a batch of conversion jobs loaded from YAML.
type Config struct {
	// Method selects the conversion backend, native or dcm2niix.
	Method string `yaml:"method"`

	// Compress emits .nii.gz instead of .nii.
	Compress bool `yaml:"compress"`

	// LogPath, when set, receives the output of external tool runs.
	LogPath string `yaml:"logPath"`

	// Jobs is the list of conversions to perform.
	Jobs []Job `yaml:"jobs"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Method:   MethodNative,
		Compress: true,
	}
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values without touching the filesystem.
func (c *Config) Validate() error {
	if c.Method != MethodNative && c.Method != MethodDcm2niix {
		return fmt.Errorf("%w: unknown method %q", medimg.ErrConfiguration, c.Method)
	}
	for i, j := range c.Jobs {
		if j.Input == "" || j.Output == "" {
			return fmt.Errorf("%w: job %d needs both input and output", medimg.ErrConfiguration, i)
		}
	}
	return nil
}
