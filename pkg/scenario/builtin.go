package scenario

import (
	"context"
	"strings"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/ui"
)

// URLs and titles the built-in scenarios use.
const (
	NavigationURL       = "https://www.google.com"
	NavigationHost      = "google.com"
	BookmarkURL         = "https://www.rdbrck.com/"
	BookmarkTitle       = "RedBrck Video | Photo Production"
	BookmarkTitlePartly = "Redbrick"
)

// Builtin returns every scenario in run order.
func Builtin() []Scenario {
	return []Scenario{Install(), Navigation(), Bookmark()}
}

// Lookup finds a built-in scenario by name.
func Lookup(name string) (Scenario, bool) {
	for _, sc := range Builtin() {
		if sc.Name == name {
			return sc, true
		}
	}
	return Scenario{}, false
}

// Navigation loads a page and checks the address bar.
func Navigation() Scenario {
	return Scenario{
		Name:        "navigation",
		Description: "Verify navigation to a URL",
		Tags:        []string{"navigation", "regression"},
		Run: func(ctx context.Context, t *T) error {
			if err := t.Step(ctx, "ensure Shift is installed", t.Flows().EnsureInstalled); err != nil {
				return err
			}
			p, err := t.Pages(ctx)
			if err != nil {
				return err
			}
			browser := p.Browser()

			if err := t.Step(ctx, "navigate to "+NavigationURL, func(ctx context.Context) error {
				return browser.NavigateTo(ctx, NavigationURL)
			}); err != nil {
				return err
			}
			return t.Step(ctx, "address bar contains "+NavigationHost, func(ctx context.Context) error {
				return browser.WaitForAddressContaining(ctx, NavigationHost)
			})
		},
	}
}

// Bookmark saves the current page and finds it in the bookmarks bar.
func Bookmark() Scenario {
	return Scenario{
		Name:        "bookmark",
		Description: "Create and verify bookmark",
		Tags:        []string{"bookmark", "regression"},
		Run: func(ctx context.Context, t *T) error {
			if err := t.Step(ctx, "ensure Shift is installed", t.Flows().EnsureInstalled); err != nil {
				return err
			}
			p, err := t.Pages(ctx)
			if err != nil {
				return err
			}
			browser := p.Browser()
			delays := t.Delays()

			if err := t.Optional(ctx, "maximize window", browser.MaximizeWindow); err != nil {
				return err
			}
			if err := t.Step(ctx, "enable bookmarks bar", browser.EnsureBookmarksBarVisible); err != nil {
				return err
			}
			if err := ui.Pause(ctx, delays.Settle); err != nil {
				return err
			}

			if err := t.Step(ctx, "navigate to "+BookmarkURL, func(ctx context.Context) error {
				return browser.NavigateTo(ctx, BookmarkURL)
			}); err != nil {
				return err
			}
			if err := ui.Pause(ctx, delays.PageLoad); err != nil {
				return err
			}
			t.Screenshot(ctx, "Page Loaded - Redbrick")

			if err := t.Step(ctx, "save bookmark", browser.SaveBookmark); err != nil {
				return err
			}
			if err := ui.Pause(ctx, delays.Settle); err != nil {
				return err
			}
			t.Screenshot(ctx, "Bookmark Action Performed")

			return t.Step(ctx, "verify bookmark in bar", func(ctx context.Context) error {
				found := browser.VerifyBookmarkInBar(ctx, BookmarkTitle)
				if !found {
					logger.Info("exact title not found, trying %q", BookmarkTitlePartly)
					found = browser.VerifyBookmarkInBar(ctx, BookmarkTitlePartly)
				}
				t.Screenshot(ctx, "Bookmark Verification Result")
				if !found {
					return core.ErrBookmarkNotFound.WithMessagef("bookmark for %q was not found in the Bookmarks Bar", BookmarkTitle)
				}
				return nil
			})
		},
	}
}

// Install downloads and installs the browser, then checks that the
// installed version matches the installer. The browser is uninstalled
// afterwards.
func Install() Scenario {
	return Scenario{
		Name:        "install",
		Description: "Download, install and verify Shift Browser",
		Tags:        []string{"install", "smoke", "regression"},
		Run: func(ctx context.Context, t *T) error {
			var installerVersion string
			if err := t.Step(ctx, "download and install", func(ctx context.Context) error {
				v, err := t.Flows().InstallFresh(ctx)
				installerVersion = v
				return err
			}); err != nil {
				return err
			}

			if err := t.Optional(ctx, "maximize window", func(ctx context.Context) error {
				p, err := t.Pages(ctx)
				if err != nil {
					return err
				}
				return p.Browser().MaximizeWindow(ctx)
			}); err != nil {
				return err
			}

			if installerVersion == "" {
				logger.Info("skipping verification, version unavailable")
				return nil
			}
			return t.Step(ctx, "verify installed version", func(ctx context.Context) error {
				actual, err := t.Flows().InstalledVersion(ctx)
				if err != nil {
					return err
				}
				if !strings.Contains(actual, installerVersion) {
					return core.ErrVersionMismatch.WithMessagef(
						"expected version %s to be part of %s", installerVersion, actual)
				}
				logger.Info("version verification successful: %s", actual)
				return nil
			})
		},
		Teardown: func(ctx context.Context, t *T) {
			t.Flows().Sessions().Quit()
			if err := t.Flows().Uninstall(ctx); err != nil {
				logger.Warn("uninstall: %v", err)
			}
		},
	}
}
