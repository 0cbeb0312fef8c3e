package config

import (
	"os"
	"path/filepath"
	"sync"
)

// EnvHome overrides the runner home directory.
const EnvHome = "SHIFT_RUNNER_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// homeResolvers are tried in order; the first non-empty answer wins.
var homeResolvers = []func() string{
	func() string { return os.Getenv(EnvHome) },
	binaryHome,
	func() string {
		cwd, _ := os.Getwd()
		return cwd
	},
}

// GetHome returns the runner home: $SHIFT_RUNNER_HOME, else <home> when the
// binary lives in <home>\bin, else the working directory. The answer is
// cached for the process.
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = "."
		for _, resolve := range homeResolvers {
			if dir := resolve(); dir != "" {
				homeDir = dir
				break
			}
		}
	})
	return homeDir
}

// GetReportsDir returns <home>/reports, the default report root.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

// GetLogsDir returns <home>/logs, used by commands without a report dir.
func GetLogsDir() string {
	return filepath.Join(GetHome(), "logs")
}

func binaryHome() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	if dir := filepath.Dir(exe); filepath.Base(dir) == "bin" {
		return filepath.Dir(dir)
	}
	return ""
}

// ResetHome clears the cached home. Tests only.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
