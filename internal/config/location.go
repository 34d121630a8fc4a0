package config

import (
	"os"
	"path/filepath"
)

// GetConfigPath returns $HARVEST_CONFIG if set, else ~/.harvest/config.
func GetConfigPath() (string, error) {
	if configPath := os.Getenv("HARVEST_CONFIG"); configPath != "" {
		return configPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".harvest", "config"), nil
}

// EnsureConfigDir creates the directory holding the config file.
func EnsureConfigDir() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}
