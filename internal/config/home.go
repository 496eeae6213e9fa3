package config

import (
	"os"
	"path/filepath"
)

// ConfigDir returns the dockercloud configuration directory.
// It checks DOCKERCLOUD_CONFIG_DIR first, then defaults to <user config dir>/dockercloud.
func ConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, ConfigFileName), nil
}

// LogsDir returns the log file directory (<config dir>/logs).
func LogsDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, LogsSubdir), nil
}
