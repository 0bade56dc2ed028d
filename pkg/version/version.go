// Package version provides build metadata for jobrunner.
package version

import (
	"fmt"
	"runtime"
	"time"
)

// These variables are injected at build time using -ldflags.
var (
	// Version holds the current version of jobrunner.
	Version = "dev"
	// Commit holds the commit the binary was built from.
	Commit = "none"
	// BuildDate holds the build date.
	BuildDate = "unknown"
	// StartDate is when the process started.
	StartDate = time.Now()
)

// Struct returns version information in a structured format.
type Struct struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"buildDate" yaml:"build_date"`
	GoVersion string `json:"goVersion" yaml:"go_version"`
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("jobrunner %s (commit: %s, date: %s)", Version, Commit, BuildDate)
}

// Get returns version information as a Struct.
func Get() Struct {
	return Struct{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// Uptime reports how long the process has been running.
func Uptime() time.Duration {
	return time.Since(StartDate)
}
