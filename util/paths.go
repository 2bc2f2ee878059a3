package util

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppConfigDir = ".config/socialdistance"
	// ConfigDirEnv points the server at a config directory other than ~/.config/socialdistance.
	ConfigDirEnv = EnvPrefix + "CONFIG_DIR"
)

// GetConfigDir returns the directory holding config.yaml and the database, creating
// it when missing.
func GetConfigDir() (string, error) {
	dir := os.Getenv(ConfigDirEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, AppConfigDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return dir, nil
}

// ResolveFilePath prefers a file in the working directory and otherwise places it in
// the config directory, whether or not it exists there yet. Absolute paths are kept.
func ResolveFilePath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	if _, err := os.Stat(filename); err == nil {
		return filename
	}
	dir, err := GetConfigDir()
	if err != nil {
		return filename
	}
	return filepath.Join(dir, filename)
}
