package flows

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/shift-runner/pkg/config"
	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/installer"
	"github.com/devicelab-dev/shift-runner/pkg/pages"
	"github.com/devicelab-dev/shift-runner/pkg/session"
	"github.com/devicelab-dev/shift-runner/pkg/winappdriver/wadtest"
)

type downloaderFunc func(ctx context.Context, url, dir string) error

func (f downloaderFunc) Download(ctx context.Context, url, dir string) error { return f(ctx, url, dir) }

type doneProcess struct{}

func (doneProcess) Wait() error { return nil }

type fakeRunner struct {
	mu      sync.Mutex
	version string
	onStart func(name string, args []string) error
	started []string
}

func (r *fakeRunner) Output(context.Context, string, ...string) ([]byte, error) {
	return []byte(r.version + "\r\n"), nil
}

func (r *fakeRunner) Start(name string, args ...string) (installer.Process, error) {
	r.mu.Lock()
	r.started = append(r.started, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	r.mu.Unlock()
	if r.onStart != nil {
		if err := r.onStart(name, args); err != nil {
			return nil, err
		}
	}
	return doneProcess{}, nil
}

func (r *fakeRunner) Started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...)
}

type fixture struct {
	srv    *wadtest.Server
	root   string
	orch   *Orchestrator
	runner *fakeRunner
}

func newFixture(t *testing.T, download installer.Downloader) *fixture {
	t.Helper()
	srv := wadtest.NewServer()
	t.Cleanup(srv.Close)

	root := t.TempDir()
	s, err := config.DefaultSettings().WithOverrides(map[string]string{
		config.KeyWinAppDriverURL: srv.URL,
		config.KeyImplicitWait:    "0",
		config.KeyExplicitWait:    "1",
		config.KeyScreenshotDir:   filepath.Join(root, "screenshots"),
		config.KeyDownloadsDir:    filepath.Join(root, "Downloads"),
	})
	require.NoError(t, err)
	s = s.WithLookup(func(name string) (string, bool) {
		if name == "LOCALAPPDATA" {
			return filepath.Join(root, "AppData", "Local"), true
		}
		return "", false
	})

	runner := &fakeRunner{version: "9.3.1.0"}
	sessions := session.NewManager(s)
	t.Cleanup(sessions.Quit)

	orch := New(Config{
		Sessions:   sessions,
		Downloader: download,
		Runner:     runner,
		Timing: &Timing{
			DownloadTimeout:  500 * time.Millisecond,
			InstallTimeout:   500 * time.Millisecond,
			FilePoll:         10 * time.Millisecond,
			UninstallTimeout: time.Second,
			WaitPoll:         10 * time.Millisecond,
			Pages:            pages.Timing{SweepSteps: 5},
		},
	})
	return &fixture{srv: srv, root: root, orch: orch, runner: runner}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("MZ"), 0o644))
}

// installsOnStart makes the fake installer create the browser executable.
func (f *fixture) installsOnStart() {
	f.runner.onStart = func(name string, _ []string) error {
		if installer.IsInstaller(filepath.Base(name)) {
			exe := f.orch.ExecutablePath()
			if err := os.MkdirAll(filepath.Dir(exe), 0o755); err != nil {
				return err
			}
			return os.WriteFile(exe, []byte("MZ"), 0o644)
		}
		return nil
	}
}

func savesInstaller(name string) downloaderFunc {
	return func(_ context.Context, _, dir string) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, name), []byte("MZ"), 0o644)
	}
}

func clickEvents(events []string) []string {
	var out []string
	for _, e := range events {
		if name, ok := strings.CutPrefix(e, "click "); ok {
			out = append(out, name)
		}
	}
	return out
}

func wizard(optional bool) []*wadtest.Element {
	elems := []*wadtest.Element{
		{
			Name:       "EULA and Privacy Policy Checkbox",
			Attributes: map[string]string{"AriaProperties": "checked=false"},
			OnClick:    func(e *wadtest.Element) { e.Attributes["AriaProperties"] = "checked=true" },
		},
		{Name: "Go to next step"},
		{Name: "Open Shift"},
	}
	if optional {
		elems = append(elems,
			&wadtest.Element{Name: "Skip without adding apps"},
			&wadtest.Element{Name: "Next"},
			&wadtest.Element{Name: "Select this template and continue"},
		)
	}
	return elems
}

func TestExecutablePath(t *testing.T) {
	f := newFixture(t, nil)
	local := filepath.Join(f.root, "AppData", "Local")
	assert.Equal(t, filepath.Join(local, "Shift", "chromium", "shift.exe"), f.orch.ExecutablePath())
	assert.Equal(t, filepath.Join(local, "Shift", "unins000.exe"), f.orch.UninstallerPath())
}

func TestHandleSetup_AllSteps(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.SetApp(wizard(true)...)

	require.NoError(t, f.orch.HandleSetup(context.Background()))
	assert.Equal(t, []string{
		"EULA and Privacy Policy Checkbox",
		"Go to next step",
		"Go to next step",
		"Skip without adding apps",
		"Next",
		"Select this template and continue",
		"Open Shift",
	}, clickEvents(f.srv.Events()))
}

func TestHandleSetup_OptionalStepsAbsent(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.SetApp(wizard(false)...)

	require.NoError(t, f.orch.HandleSetup(context.Background()))
	clicks := clickEvents(f.srv.Events())
	require.NotEmpty(t, clicks)
	assert.Equal(t, "Open Shift", clicks[len(clicks)-1])
}

func TestHandleSetup_RequiredStepFails(t *testing.T) {
	f := newFixture(t, nil)

	err := f.orch.HandleSetup(context.Background())
	assert.True(t, errors.Is(err, core.ErrWaitTimeout), err)
}

func TestDownloadAndInstall(t *testing.T) {
	f := newFixture(t, savesInstaller("ShiftSetup.exe"))
	f.installsOnStart()
	downloads := filepath.Join(f.root, "Downloads")
	writeFile(t, filepath.Join(downloads, "Shift-old.exe"))

	version, err := f.orch.DownloadAndInstall(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9.3.1.0", version)

	assert.NoFileExists(t, filepath.Join(downloads, "Shift-old.exe"))
	assert.FileExists(t, f.orch.ExecutablePath())
	assert.Equal(t, []string{filepath.Join(downloads, "ShiftSetup.exe")}, f.runner.Started())
}

func TestDownloadAndInstall_NothingDownloaded(t *testing.T) {
	f := newFixture(t, downloaderFunc(func(context.Context, string, string) error {
		return errors.New("net::ERR_ABORTED")
	}))

	_, err := f.orch.DownloadAndInstall(context.Background())
	assert.True(t, errors.Is(err, core.ErrInstallFailed), err)
	assert.Empty(t, f.runner.Started())
}

func TestDownloadAndInstall_ExecutableNeverAppears(t *testing.T) {
	f := newFixture(t, savesInstaller("ShiftSetup.exe"))

	_, err := f.orch.DownloadAndInstall(context.Background())
	assert.True(t, errors.Is(err, core.ErrAppNotInstalled), err)
}

func TestDownloadAndInstall_EmptyVersion(t *testing.T) {
	f := newFixture(t, savesInstaller("ShiftSetup.exe"))
	f.runner.version = ""

	_, err := f.orch.DownloadAndInstall(context.Background())
	assert.True(t, errors.Is(err, core.ErrInstallFailed), err)
	assert.Empty(t, f.runner.Started())
}

func TestEnsureInstalled_AlreadyInstalled(t *testing.T) {
	f := newFixture(t, downloaderFunc(func(context.Context, string, string) error {
		t.Fatal("must not download")
		return nil
	}))
	writeFile(t, f.orch.ExecutablePath())

	require.NoError(t, f.orch.EnsureInstalled(context.Background()))
	assert.Contains(t, f.srv.Events(), "create launch "+f.orch.ExecutablePath())
}

func TestEnsureInstalled_InstallsAndReacquires(t *testing.T) {
	f := newFixture(t, savesInstaller("ShiftSetup.exe"))
	f.installsOnStart()
	f.srv.SetApp(wizard(true)...)

	require.NoError(t, f.orch.EnsureInstalled(context.Background()))
	assert.Equal(t, f.orch.ExecutablePath(), f.orch.Sessions().Settings().BrowserPath())
	assert.Contains(t, f.srv.Events(), "create launch "+f.orch.ExecutablePath())
	assert.Contains(t, clickEvents(f.srv.Events()), "Open Shift")
}

func TestEnsureInstalled_SetupFailureIsSoft(t *testing.T) {
	f := newFixture(t, savesInstaller("ShiftSetup.exe"))
	f.installsOnStart()

	require.NoError(t, f.orch.EnsureInstalled(context.Background()))
	assert.NotNil(t, f.orch.Sessions().Current())
}

func TestPages_RebindsAfterReplace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	p, err := f.orch.Pages(ctx)
	require.NoError(t, err)
	browser := p.Browser()

	_, err = f.orch.Sessions().Replace(ctx)
	require.NoError(t, err)

	p2, err := f.orch.Pages(ctx)
	require.NoError(t, err)
	assert.Same(t, p, p2)
	assert.NotSame(t, browser, p2.Browser())
	assert.Equal(t, f.orch.Sessions().Current().SessionID(), sessionID(t, p2))
}

func sessionID(t *testing.T, p *pages.Registry) string {
	t.Helper()
	c, ok := p.Waiter().Driver().(interface{ SessionID() string })
	require.True(t, ok)
	return c.SessionID()
}

func versionScreen(version string) []*wadtest.Element {
	return []*wadtest.Element{
		{Name: "Quick Settings"},
		{Name: "Advanced Settings"},
		{AutomationID: "about-menu"},
		{Name: "Version " + version + " (Official Build) (64-bit)"},
	}
}

func TestInstalledVersion(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.SetApp(versionScreen("9.3.1.0")...)

	text, err := f.orch.InstalledVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Version 9.3.1.0 (Official Build) (64-bit)", text)
	assert.NotContains(t, clickEvents(f.srv.Events()), "#about-menu")

	shots, err := filepath.Glob(filepath.Join(f.root, "screenshots", VersionScreenshot+"_*.png"))
	require.NoError(t, err)
	assert.Len(t, shots, 1)
}

func TestVerifyInstalledVersion(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.SetApp(versionScreen("9.3.1.0")...)
	ctx := context.Background()

	require.NoError(t, f.orch.VerifyInstalledVersion(ctx, "9.3.1.0"))
	assert.Contains(t, clickEvents(f.srv.Events()), "#about-menu")

	err := f.orch.VerifyInstalledVersion(ctx, "10.0.0.0")
	assert.True(t, errors.Is(err, core.ErrVersionMismatch), err)
}

func TestUninstall(t *testing.T) {
	f := newFixture(t, nil)
	writeFile(t, f.orch.UninstallerPath())
	yes := &wadtest.Element{AutomationID: "6", Name: "Yes"}
	f.srv.SetDesktop(yes)

	require.NoError(t, f.orch.Uninstall(context.Background()))
	assert.Equal(t, []string{f.orch.UninstallerPath() + " --uninstall"}, f.runner.Started())

	events := f.srv.Events()
	assert.Contains(t, events, "click Yes")
	assert.Empty(t, f.srv.LiveSessions(), "desktop session closed")
}

func TestUninstall_PointerClickFallback(t *testing.T) {
	f := newFixture(t, nil)
	writeFile(t, f.orch.UninstallerPath())
	f.srv.SetDesktop(&wadtest.Element{AutomationID: "6", Name: "Yes", Disabled: true})

	require.NoError(t, f.orch.Uninstall(context.Background()))
	events := f.srv.Events()
	assert.Contains(t, events, "moveto Yes")
	assert.Contains(t, events, "mouseclick")
}

func TestUninstall_Soft(t *testing.T) {
	t.Run("not installed", func(t *testing.T) {
		f := newFixture(t, nil)
		require.NoError(t, f.orch.Uninstall(context.Background()))
		assert.Empty(t, f.runner.Started())
	})

	t.Run("start fails", func(t *testing.T) {
		f := newFixture(t, nil)
		writeFile(t, f.orch.UninstallerPath())
		f.runner.onStart = func(string, []string) error { return errors.New("access denied") }
		require.NoError(t, f.orch.Uninstall(context.Background()))
		assert.Empty(t, f.srv.Events())
	})

	t.Run("no prompt", func(t *testing.T) {
		f := newFixture(t, nil)
		writeFile(t, f.orch.UninstallerPath())
		f.srv.Update(func() { f.srv.RootError = "desktop unavailable" })
		require.NoError(t, f.orch.Uninstall(context.Background()))
	})
}

func TestMaximizeWindowAndScreenshot(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.orch.Screenshot(ctx, "before session")
	assert.True(t, errors.Is(err, core.ErrNoSession), err)

	f.orch.MaximizeWindow(ctx)
	found := false
	for _, e := range f.srv.Events() {
		found = found || strings.HasPrefix(e, "maximize ")
	}
	assert.True(t, found)

	att, err := f.orch.Screenshot(ctx, "after session")
	require.NoError(t, err)
	assert.FileExists(t, att.Path)
}
