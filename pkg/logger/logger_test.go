package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestUninitializedIsNoop(t *testing.T) {
	Close()
	Info("nothing %d", 1)
	Warn("nothing")
}

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, Init(path))

	Info("session %s", "abc")
	Warn("window %q not found", "Shift")
	Error("boom")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, "INFO"), out)
	assert.Contains(t, out, "session abc")
	assert.Contains(t, out, `window "Shift" not found`)
	assert.Contains(t, out, "ERROR")
}

func TestInitWithCoreObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	InitWithCore(core)
	defer Close()

	Debug("polling %s", "omnibox")
	Info("clicked")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "polling omnibox", logs.All()[0].Message)
	assert.Equal(t, zapcore.InfoLevel, logs.All()[1].Level)
}

func TestInitBadPath(t *testing.T) {
	err := Init(filepath.Join(t.TempDir(), "missing", "dir", "run.log"))
	assert.Error(t, err)
}
