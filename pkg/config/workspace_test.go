package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkspace_Valid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")

	content := `
scenarios:
  - navigation
  - bookmark
includeTags:
  - regression
excludeTags:
  - install
env:
  LOCALAPPDATA: C:\Users\ci\AppData\Local
reportDir: out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ws, err := LoadWorkspace(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"navigation", "bookmark"}, ws.Scenarios)
	assert.Equal(t, []string{"regression"}, ws.IncludeTags)
	assert.Equal(t, []string{"install"}, ws.ExcludeTags)
	assert.Equal(t, `C:\Users\ci\AppData\Local`, ws.Env["LOCALAPPDATA"])
	assert.Equal(t, "out", ws.ReportDir)
}

func TestLoadWorkspace_NonExistentFile(t *testing.T) {
	_, err := LoadWorkspace("/nonexistent/suite.yaml")
	assert.Error(t, err)
}

func TestLoadWorkspace_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`scenarios: [invalid yaml`), 0o644))

	_, err := LoadWorkspace(path)
	assert.Error(t, err)
}

func TestLoadWorkspaceFromDir(t *testing.T) {
	t.Run("suite.yml fallback", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "suite.yml"), []byte("includeTags: [smoke]\n"), 0o644))

		ws, err := LoadWorkspaceFromDir(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"smoke"}, ws.IncludeTags)
	})

	t.Run("no file", func(t *testing.T) {
		ws, err := LoadWorkspaceFromDir(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, ws.Scenarios)
		assert.Empty(t, ws.IncludeTags)
	})
}

func TestWorkspace_ApplyEnv(t *testing.T) {
	t.Setenv("SHIFT_WS_TEST", "")
	ws := &Workspace{Env: map[string]string{"SHIFT_WS_TEST": "from-suite"}}

	require.NoError(t, ws.ApplyEnv())
	assert.Equal(t, "from-suite", os.Getenv("SHIFT_WS_TEST"))
}
