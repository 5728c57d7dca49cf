package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables read by the application layer.
const (
	EnvConfigPath = "PHOTOSYNC_CONFIG_PATH"
	EnvHome       = "PHOTOSYNC_HOME"
	EnvPassphrase = "PHOTOSYNC_PASSPHRASE"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - PHOTOSYNC_CONFIG_PATH: config file location (default: ~/.config/photosync.toml)
//   - PHOTOSYNC_HOME: base directory for photosync data (default: ~/.local/share/photosync)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "photosync.toml"), nil
}

// getBaseDir falls back to the XDG data directory.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "photosync"), nil
}
