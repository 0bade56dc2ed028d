// Package paths resolves per-user locations of jobrunner files.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigFileName is the name of the configuration file inside ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the config directory for jobrunner.
// Order: XDG_CONFIG_HOME/jobrunner, platform-specific fallback.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "jobrunner")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Jobrunner")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "jobrunner")
}

// DefaultConfigFile returns the config file read when --config is not given.
// The file does not have to exist.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}
