package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables consulted by GetDefaults and the passphrase prompt.
const (
	EnvConfigPath = "MEDRX_CONFIG_PATH"
	EnvHome       = "MEDRX_HOME"
	EnvPassphrase = "MEDRX_PASSPHRASE"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - MEDRX_CONFIG_PATH: config file location (default: ~/.config/medrx.toml)
//   - MEDRX_HOME: base directory for medrx data (default: ~/.local/share/medrx)
func GetDefaults() (map[string]string, error) {
	configPath, err := fromEnvOrHome(EnvConfigPath, ".config", "medrx.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := fromEnvOrHome(EnvHome, ".local", "share", "medrx")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// fromEnvOrHome returns the value of env if set, else the home-relative path.
func fromEnvOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
