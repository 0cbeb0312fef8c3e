// Package flows strings page steps into the multi-step procedures shared
// by scenarios: installing the browser, running its setup wizard, reading
// the installed version and uninstalling.
package flows

import (
	"context"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/config"
	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/installer"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/pages"
	"github.com/devicelab-dev/shift-runner/pkg/screenshot"
	"github.com/devicelab-dev/shift-runner/pkg/session"
	"github.com/devicelab-dev/shift-runner/pkg/ui"
	"github.com/devicelab-dev/shift-runner/pkg/winappdriver"
)

// VersionScreenshot labels the capture of the About panel.
const VersionScreenshot = "About Shift - Version Visible"

// uninstallConfirmID is the AutomationId of the uninstaller's "Yes" button.
const uninstallConfirmID = "6"

// Timing holds every fixed wait of the flows.
type Timing struct {
	DownloadTimeout  time.Duration
	InstallTimeout   time.Duration
	FilePoll         time.Duration
	LaunchSettle     time.Duration
	SetupStep        time.Duration
	UninstallPrompt  time.Duration
	UninstallTimeout time.Duration
	UninstallSettle  time.Duration
	WaitPoll         time.Duration
	Pages            pages.Timing
}

// DefaultTiming returns the waits used against a real installation.
func DefaultTiming() Timing {
	return Timing{
		DownloadTimeout:  installer.DefaultDownloadTimeout,
		InstallTimeout:   installer.DefaultInstallTimeout,
		FilePoll:         installer.DefaultPollInterval,
		LaunchSettle:     installer.DefaultLaunchSettle,
		SetupStep:        500 * time.Millisecond,
		UninstallPrompt:  installer.DefaultUninstallPrompt,
		UninstallTimeout: installer.DefaultUninstallTimeout,
		UninstallSettle:  installer.DefaultUninstallSettle,
		WaitPoll:         ui.DefaultPollInterval,
		Pages:            pages.DefaultTiming(),
	}
}

// Config wires an Orchestrator. Zero fields get production defaults.
type Config struct {
	Sessions    *session.Manager
	Screenshots *screenshot.Taker
	Downloader  installer.Downloader
	Runner      installer.Runner
	Timing      *Timing
}

// Orchestrator runs flows against the session owned by a session.Manager.
type Orchestrator struct {
	settings *config.Settings
	sessions *session.Manager
	shots    *screenshot.Taker
	download installer.Downloader
	runner   installer.Runner
	timing   Timing

	pages *pages.Registry
	bound *winappdriver.Client

	installed string // product version of the last installer run
}

// New creates an orchestrator. cfg.Sessions is required.
func New(cfg Config) *Orchestrator {
	settings := cfg.Sessions.Settings()
	o := &Orchestrator{
		settings: settings,
		sessions: cfg.Sessions,
		shots:    cfg.Screenshots,
		download: cfg.Downloader,
		runner:   cfg.Runner,
		timing:   DefaultTiming(),
	}
	if cfg.Timing != nil {
		o.timing = *cfg.Timing
	}
	if o.shots == nil {
		o.shots = screenshot.New(settings.ScreenshotDir(), settings.ScreenshotOnFailure())
	}
	if o.download == nil {
		o.download = installer.NewPlaywrightDownloader(o.timing.DownloadTimeout)
	}
	if o.runner == nil {
		o.runner = installer.ExecRunner{}
	}
	return o
}

// Sessions returns the session manager.
func (o *Orchestrator) Sessions() *session.Manager { return o.sessions }

// Screenshots returns the screenshot taker.
func (o *Orchestrator) Screenshots() *screenshot.Taker { return o.shots }

// Pages returns the page registry bound to the current session, acquiring
// one if needed. After the session was replaced the cached pages are
// dropped.
func (o *Orchestrator) Pages(ctx context.Context) (*pages.Registry, error) {
	c, err := o.sessions.Get(ctx)
	if err != nil {
		return nil, err
	}
	if o.pages == nil {
		w := ui.NewWaiter(c, o.settings.ExplicitWait(), o.settings.ImplicitWait()).WithInterval(o.timing.WaitPoll)
		o.pages = pages.NewRegistry(w, o.timing.Pages)
	} else if o.bound != c {
		o.pages.Reset(c)
	}
	o.bound = c
	return o.pages, nil
}

// LastInstalledVersion returns the product version of the last installer this
// orchestrator ran, or "".
func (o *Orchestrator) LastInstalledVersion() string { return o.installed }

// Screenshot captures the current session regardless of configuration.
func (o *Orchestrator) Screenshot(ctx context.Context, label string) (core.Attachment, error) {
	c := o.sessions.Current()
	if c == nil {
		return core.Attachment{}, core.ErrNoSession.WithMessagef("cannot take screenshot %q", label)
	}
	return o.shots.Capture(ctx, c, label)
}

// MaximizeWindow maximizes the browser. Failures are logged.
func (o *Orchestrator) MaximizeWindow(ctx context.Context) {
	p, err := o.Pages(ctx)
	if err == nil {
		err = p.Browser().MaximizeWindow(ctx)
	}
	if err != nil {
		logger.Warn("could not maximize window: %v", err)
	}
}

// ExecutablePath returns where the installer puts the browser.
func (o *Orchestrator) ExecutablePath() string {
	return installer.ExecutablePath(o.settings.Expand(installer.LocalAppData))
}

// UninstallerPath returns the uninstaller location.
func (o *Orchestrator) UninstallerPath() string {
	return installer.UninstallerPath(o.settings.Expand(installer.LocalAppData))
}
