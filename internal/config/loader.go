package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up in the working directory.
const DefaultConfigFile = ".foodset.yaml"

// Load reads the YAML configuration file at path over the defaults of NewConfig. Keys missing from
// the file keep their default values. Returns ErrConfigNotFound if the file does not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, errors.Wrapf(err, "cannot read configuration %q", path)
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse configuration %q", path)
	}
	return cfg, nil
}

// Save writes c as YAML to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.Wrap(err, "failed to create config directory")
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. configPath, if it is not empty
// 2. DefaultConfigFile in the current directory
// 3. config.yaml in the XDG config directory
//
// Returns the path of the configuration file, or an empty string if none was found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := []string{DefaultConfigFile, filepath.Join(XDGConfigDir(), "config.yaml")}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
