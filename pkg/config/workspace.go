// Package config handles configuration for shift-runner: the driver
// settings file (config.properties), the workspace suite file
// (suite.yaml) and the runner home directory.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Workspace represents the suite selection file (suite.yaml).
type Workspace struct {
	// Scenario selection
	Scenarios   []string `yaml:"scenarios"`   // Scenario names; empty means all
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude

	// Execution settings
	Env map[string]string `yaml:"env"` // Environment variables applied before the run

	// Output
	ReportDir string `yaml:"reportDir"`
}

// LoadWorkspace loads a workspace from a file.
func LoadWorkspace(path string) (*Workspace, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided workspace file
	if err != nil {
		return nil, err
	}

	var ws Workspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, err
	}

	return &ws, nil
}

// LoadWorkspaceFromDir looks for suite.yaml or suite.yml in the directory.
func LoadWorkspaceFromDir(dir string) (*Workspace, error) {
	for _, name := range []string{"suite.yaml", "suite.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadWorkspace(path)
		}
	}

	// No workspace file found, return empty workspace
	return &Workspace{}, nil
}

// ApplyEnv exports the workspace env block into the process environment so
// %VAR% expansion in config.properties can see it.
func (w *Workspace) ApplyEnv() error {
	for k, v := range w.Env {
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	return nil
}
