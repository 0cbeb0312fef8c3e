package installer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// Process is a started child process.
type Process interface {
	Wait() error
}

// Runner starts external programs.
type Runner interface {
	// Output runs a command to completion and returns stdout and stderr.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches a command without waiting for it.
	Start(name string, args ...string) (Process, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Output implements Runner.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Start implements Runner. The process is not tied to a context: installers
// keep running after the caller stops waiting.
func (ExecRunner) Start(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// FileVersion reads the ProductVersion of a Windows executable through
// PowerShell. The first line of output is the version.
func FileVersion(ctx context.Context, r Runner, path string) (string, error) {
	quoted := strings.ReplaceAll(path, "'", "''")
	out, err := r.Output(ctx, "powershell.exe", "-Command",
		fmt.Sprintf("(Get-Item '%s').VersionInfo.ProductVersion", quoted))
	if err != nil {
		return "", fmt.Errorf("query version of %s: %w", path, err)
	}

	line, _, _ := bufio.NewReader(bytes.NewReader(out)).ReadLine()
	version := strings.TrimSpace(string(line))
	if version == "" {
		return "", fmt.Errorf("no product version reported for %s", path)
	}
	return version, nil
}

// WaitProcess waits up to timeout for p to exit. It reports whether the
// process finished; its exit status is logged, not returned.
func WaitProcess(ctx context.Context, p Process, timeout time.Duration) bool {
	done := make(chan error, 1)
	go func() { done <- p.Wait() }()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case err := <-done:
		if err != nil {
			logger.Warn("process exited with error: %v", err)
		}
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}
