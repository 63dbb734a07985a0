package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models prospection.yml: the per-workspace defaults for follow runs.
// Flags and PROSPECTION_* environment variables override these values.
type Config struct {
	Run struct {
		DailyLimit      int     `yaml:"daily_limit"`
		CallbackTimeout int     `yaml:"callback_timeout_seconds"`
		DelayBetween    float64 `yaml:"delay_between_seconds"`
		DisplayDuration int     `yaml:"display_duration_seconds"`
	} `yaml:"run"`
	Paths struct {
		QuotaFile  string `yaml:"quota_file"`
		ResultsLog string `yaml:"results_log"`
	} `yaml:"paths"`
}

// Default returns the built-in run defaults.
func Default() *Config {
	c := &Config{}
	c.Run.DailyLimit = 0
	c.Run.CallbackTimeout = 120
	c.Run.DelayBetween = 1.5
	c.Run.DisplayDuration = 8
	return c
}

// Path returns the config file location for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "prospection.yml")
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses config bytes on top of the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config values are usable.
func (c *Config) Validate() error {
	if c.Run.DailyLimit < 0 {
		return fmt.Errorf("config.run.daily_limit must be >= 0")
	}
	if c.Run.CallbackTimeout <= 0 {
		return fmt.Errorf("config.run.callback_timeout_seconds must be positive")
	}
	if c.Run.DelayBetween < 0 {
		return fmt.Errorf("config.run.delay_between_seconds must be >= 0")
	}
	if c.Run.DisplayDuration <= 0 {
		return fmt.Errorf("config.run.display_duration_seconds must be positive")
	}
	return nil
}

// QuotaPath resolves the quota file location: configured path first, then a
// per-user default under the home directory.
func (c *Config) QuotaPath() string {
	if c.Paths.QuotaFile != "" {
		return c.Paths.QuotaFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".prospection", "quota.json")
	}
	return filepath.Join(home, ".prospection", "quota.json")
}
