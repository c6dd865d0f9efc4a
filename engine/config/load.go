package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority defaults < file < flags, using the flags from ParseFlags.
//
// Returns:
//   - *Config: the merged configuration
//   - error: an error if the file cannot be read or the result is invalid
func Load() (*Config, error) {
	return LoadWith(parsed)
}

// LoadWith is Load with explicit flags. Without --config the first of ./config.yaml and ConfigDir()/config.yaml
// that exists is read.
//
// Parameters:
//   - flags: the command-line overrides
//
// Returns:
//   - *Config: the merged configuration
//   - error: an error if the file cannot be read or the result is invalid
func LoadWith(flags Flags) (*Config, error) {
	cfg := Default()

	path := flags.ConfigPath
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}
	flags.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads one file over the defaults, ignoring flags. Used when the watched file changes.
//
// Parameters:
//   - path: the YAML file
//
// Returns:
//   - *Config: the configuration
//   - error: an error if the file cannot be read or the result is invalid
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "OxyPBR")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "OxyPBR")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "oxy-pbr")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "oxy-pbr")
	}
}

// loadFromFile merges a YAML file over the values already in cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
