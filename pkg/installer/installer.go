// Package installer downloads, installs and removes the Shift browser.
//
// The package only provides the building blocks: the download, file
// polling, version lookup and child processes. The install sequence itself
// lives in flows.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// LocalAppData is the per-user install root, as a %VAR% reference.
const LocalAppData = "%LOCALAPPDATA%"

// Default durations of the install and uninstall steps.
const (
	DefaultDownloadTimeout  = 30 * time.Second
	DefaultInstallTimeout   = 240 * time.Second
	DefaultPollInterval     = time.Second
	DefaultLaunchSettle     = 20 * time.Second
	DefaultUninstallPrompt  = 3 * time.Second
	DefaultUninstallTimeout = 15 * time.Second
	DefaultUninstallSettle  = 2 * time.Second
)

// Downloader saves the installer served at url into dir.
type Downloader interface {
	Download(ctx context.Context, url, dir string) error
}

// ExecutablePath returns the installed browser under root.
func ExecutablePath(root string) string {
	return filepath.Join(root, "Shift", "chromium", "shift.exe")
}

// UninstallerPath returns the uninstaller under root.
func UninstallerPath(root string) string {
	return filepath.Join(root, "Shift", "unins000.exe")
}

// IsInstaller reports whether a file name looks like a Shift installer.
func IsInstaller(name string) bool {
	return strings.Contains(name, "Shift") && strings.HasSuffix(name, ".exe")
}

// FindInstallers lists installer files in dir, sorted by name. A missing
// directory has none.
func FindInstallers(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() && IsInstaller(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// CleanOldInstallers deletes earlier installers from dir so the next
// download is the only match. It returns how many were removed.
func CleanOldInstallers(dir string) (int, error) {
	files, err := FindInstallers(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			logger.Warn("could not remove old installer %s: %v", f, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("removed %d old installer(s) from %s", removed, dir)
	}
	return removed, nil
}

// WaitForInstaller polls dir until an installer appears.
func WaitForInstaller(ctx context.Context, dir string, timeout, poll time.Duration) (string, error) {
	var found string
	err := pollUntil(ctx, timeout, poll, func() bool {
		files, err := FindInstallers(dir)
		if err != nil || len(files) == 0 {
			return false
		}
		found = files[0]
		return true
	})
	if err != nil {
		return "", core.ErrInstallFailed.
			WithMessagef("Shift installer was not downloaded to %s within %s", dir, timeout).
			WithCause(err)
	}
	return found, nil
}

// WaitForFile polls until path exists.
func WaitForFile(ctx context.Context, path string, timeout, poll time.Duration) error {
	err := pollUntil(ctx, timeout, poll, func() bool {
		_, err := os.Stat(path)
		return err == nil
	})
	if err != nil {
		return core.ErrAppNotInstalled.
			WithMessagef("Shift executable not found at %s", path).
			WithCause(err)
	}
	return nil
}

// Exists reports whether path is present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// pollUntil checks cond immediately and then every poll until it holds.
func pollUntil(ctx context.Context, timeout, poll time.Duration, cond func() bool) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up after %s: %w", timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
