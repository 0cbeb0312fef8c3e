package flows

import (
	"context"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/installer"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/ui"
)

// DownloadAndInstall downloads the installer, runs it and waits for the
// browser executable. It returns the installer's product version.
func (o *Orchestrator) DownloadAndInstall(ctx context.Context) (string, error) {
	dir := o.settings.DownloadsDir()
	if _, err := installer.CleanOldInstallers(dir); err != nil {
		logger.Warn("could not clean %s: %v", dir, err)
	}

	url := o.settings.DownloadURL()
	logger.Info("downloading installer from %s", url)
	if err := o.download.Download(ctx, url, dir); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// The file may still have landed; the wait below decides.
		logger.Warn("download reported an error: %v", err)
	}

	path, err := installer.WaitForInstaller(ctx, dir, o.timing.DownloadTimeout, o.timing.FilePoll)
	if err != nil {
		return "", err
	}
	logger.Info("downloaded file: %s", path)

	version, err := installer.FileVersion(ctx, o.runner, path)
	if err != nil {
		return "", core.ErrInstallFailed.WithMessage("could not determine installer version").WithCause(err)
	}
	logger.Info("installer version: %s", version)
	o.installed = version

	logger.Info("running installer %s", path)
	if _, err := o.runner.Start(path); err != nil {
		return "", core.ErrInstallFailed.WithMessagef("failed to run installer %s", path).WithCause(err)
	}

	exe := o.ExecutablePath()
	logger.Info("waiting for %s", exe)
	if err := installer.WaitForFile(ctx, exe, o.timing.InstallTimeout, o.timing.FilePoll); err != nil {
		return "", err
	}

	logger.Info("Shift installed, waiting %s for it to start", o.timing.LaunchSettle)
	if err := ui.Pause(ctx, o.timing.LaunchSettle); err != nil {
		return "", err
	}
	return version, nil
}

// InstallFresh downloads and installs the browser, points browser.path at
// it and replaces the session. The setup wizard is attempted but its
// failure is only logged. It returns the installer version.
func (o *Orchestrator) InstallFresh(ctx context.Context) (string, error) {
	version, err := o.DownloadAndInstall(ctx)
	if err != nil {
		return "", err
	}

	o.settings.SetBrowserPath(o.ExecutablePath())
	if _, err := o.sessions.Replace(ctx); err != nil {
		return version, err
	}

	if err := o.HandleSetup(ctx); err != nil {
		if ctx.Err() != nil {
			return version, ctx.Err()
		}
		logger.Warn("setup might have been skipped or failed: %v", err)
	}
	return version, nil
}

// EnsureInstalled installs the browser when its executable is missing and
// otherwise points browser.path at it and opens a session.
func (o *Orchestrator) EnsureInstalled(ctx context.Context) error {
	if !installer.Exists(o.ExecutablePath()) {
		logger.Info("Shift browser not found, installing")
		_, err := o.InstallFresh(ctx)
		return err
	}

	o.settings.SetBrowserPath(o.ExecutablePath())
	_, err := o.sessions.Get(ctx)
	return err
}

// Uninstall runs the uninstaller and confirms its prompt through a desktop
// session. Every step is best effort; only cancellation is returned.
func (o *Orchestrator) Uninstall(ctx context.Context) error {
	path := o.UninstallerPath()
	if !installer.Exists(path) {
		logger.Info("Shift uninstaller not found at %s", path)
		return nil
	}

	logger.Info("uninstalling Shift")
	proc, err := o.runner.Start(path, "--uninstall")
	if err != nil {
		logger.Error("failed to uninstall Shift: %v", err)
		return nil
	}

	if err := ui.Pause(ctx, o.timing.UninstallPrompt); err != nil {
		return err
	}
	o.confirmUninstall(ctx)

	if installer.WaitProcess(ctx, proc, o.timing.UninstallTimeout) {
		logger.Info("uninstall process finished")
	} else {
		logger.Warn("uninstall process still running after %s", o.timing.UninstallTimeout)
	}
	return ui.Pause(ctx, o.timing.UninstallSettle)
}

func (o *Orchestrator) confirmUninstall(ctx context.Context) {
	root, err := o.sessions.OpenRoot(ctx)
	if err != nil {
		logger.Error("error interacting with uninstall popup: %v", err)
		return
	}
	defer func() {
		if err := root.Disconnect(context.WithoutCancel(ctx)); err != nil {
			logger.Debug("close desktop session: %v", err)
		}
	}()

	w := ui.NewWaiter(root, o.settings.ExplicitWait(), o.settings.ImplicitWait()).WithInterval(o.timing.WaitPoll)
	yes := ui.Find(ui.ByAccessibilityID(uninstallConfirmID)).Named("uninstall Yes button")

	err = ui.Attempt(ctx,
		ui.Strategy{Name: "click", Run: func(ctx context.Context) error {
			id, err := yes.Resolve(ctx, root)
			if err != nil {
				return err
			}
			return root.Click(ctx, id)
		}},
		ui.Strategy{Name: "pointer click", Run: func(ctx context.Context) error {
			return w.HoverClick(ctx, yes)
		}},
	)
	if err != nil {
		logger.Warn("could not confirm uninstall: %v", err)
		return
	}
	logger.Info("confirmed uninstall prompt")
}
