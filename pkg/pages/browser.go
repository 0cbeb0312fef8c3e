package pages

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/ui"
	"github.com/devicelab-dev/shift-runner/pkg/winappdriver"
)

// AppearanceSettingsURL is the settings page with the bookmarks bar toggle.
const AppearanceSettingsURL = "chrome://settings/appearance"

// BrowserPage is the main browser window: toolbar, address bar and
// bookmarks bar.
type BrowserPage struct {
	w      *ui.Waiter
	timing Timing

	addressBar       *ui.Element
	back             *ui.Element
	forward          *ui.Element
	refresh          *ui.Element
	newTab           *ui.Element
	bookmarksBar     *ui.Element
	showBookmarksBar *ui.Element
	saveBookmark     *ui.Element
}

// NewBrowserPage creates the page.
func NewBrowserPage(w *ui.Waiter, timing Timing) *BrowserPage {
	return &BrowserPage{
		w:                w,
		timing:           timing,
		addressBar:       ui.Find(ui.ByAccessibilityID("omnibox-textbox")).Named("address bar"),
		back:             ui.Find(ui.ByName("Back")),
		forward:          ui.Find(ui.ByName("Forward")),
		refresh:          ui.Find(ui.ByName("Refresh")),
		newTab:           ui.Find(ui.ByName("New Tab")),
		bookmarksBar:     ui.Find(ui.ByName("Bookmarks")).Named("bookmarks bar"),
		showBookmarksBar: ui.Find(ui.ByName("Show Bookmarks Bar")),
		saveBookmark:     ui.Find(ui.ByName("Save")),
	}
}

// NavigateTo loads url by typing it into the address bar. When the address
// bar cannot be used, it is focused with Ctrl+L and the url typed blind.
func (p *BrowserPage) NavigateTo(ctx context.Context, url string) error {
	logger.Info("navigating to %s", url)
	err := ui.Attempt(ctx,
		ui.Strategy{Name: "address bar", Run: func(ctx context.Context) error {
			d := p.w.Driver()
			id, err := p.addressBar.Resolve(ctx, d)
			if err != nil {
				return err
			}
			if err := d.Click(ctx, id); err != nil {
				return err
			}
			if err := d.Clear(ctx, id); err != nil {
				return err
			}
			return d.SendKeysToElement(ctx, id, url+winappdriver.KeyEnter)
		}},
		ui.Strategy{Name: "focus shortcut", Run: func(ctx context.Context) error {
			if err := p.w.Driver().SendKeys(ctx, winappdriver.Chord(winappdriver.KeyControl, "l")); err != nil {
				return err
			}
			if err := ui.Pause(ctx, p.timing.Popup); err != nil {
				return err
			}
			return p.w.Driver().SendKeys(ctx, url, winappdriver.KeyEnter)
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// CurrentAddress returns the address bar text.
func (p *BrowserPage) CurrentAddress(ctx context.Context) (string, error) {
	return p.w.Text(ctx, p.addressBar)
}

// WaitForAddressContaining waits until the address bar contains substr.
func (p *BrowserPage) WaitForAddressContaining(ctx context.Context, substr string) error {
	return p.w.Until(ctx, fmt.Sprintf("address to contain %q", substr), func(ctx context.Context) (bool, error) {
		text, err := p.w.Text(ctx, p.addressBar)
		if err != nil {
			return false, err
		}
		return strings.Contains(text, substr), nil
	})
}

// ClickBack presses the Back button.
func (p *BrowserPage) ClickBack(ctx context.Context) error { return p.w.Click(ctx, p.back) }

// ClickForward presses the Forward button.
func (p *BrowserPage) ClickForward(ctx context.Context) error { return p.w.Click(ctx, p.forward) }

// ClickRefresh presses the Refresh button.
func (p *BrowserPage) ClickRefresh(ctx context.Context) error { return p.w.Click(ctx, p.refresh) }

// OpenNewTab presses the New Tab button.
func (p *BrowserPage) OpenNewTab(ctx context.Context) error { return p.w.Click(ctx, p.newTab) }

// IsBackEnabled reports whether there is history to go back to.
func (p *BrowserPage) IsBackEnabled(ctx context.Context) (bool, error) {
	return p.w.IsEnabled(ctx, p.back)
}

// IsBookmarksBarVisible reports whether the bookmarks bar is showing.
func (p *BrowserPage) IsBookmarksBarVisible(ctx context.Context) bool {
	return p.w.IsPresent(ctx, p.bookmarksBar)
}

// EnsureBookmarksBarVisible turns the bookmarks bar on through the
// appearance settings, or with Ctrl+Shift+B when the toggle is not found.
// Failures are logged; only cancellation is returned.
func (p *BrowserPage) EnsureBookmarksBarVisible(ctx context.Context) error {
	if p.IsBookmarksBarVisible(ctx) {
		logger.Debug("bookmarks bar already visible")
		return nil
	}

	logger.Info("enabling bookmarks bar")
	err := ui.Attempt(ctx,
		ui.Strategy{Name: "appearance settings", Run: func(ctx context.Context) error {
			if err := p.NavigateTo(ctx, AppearanceSettingsURL); err != nil {
				return err
			}
			if err := ui.Pause(ctx, p.timing.SettingsLoad); err != nil {
				return err
			}
			if !p.w.IsPresent(ctx, p.showBookmarksBar) {
				return fmt.Errorf("%s not shown", p.showBookmarksBar)
			}
			if err := p.w.Click(ctx, p.showBookmarksBar); err != nil {
				return err
			}
			return ui.Pause(ctx, p.timing.Popup)
		}},
		ui.Strategy{Name: "bookmarks bar shortcut", Run: func(ctx context.Context) error {
			return p.w.Driver().SendKeys(ctx, winappdriver.Chord(winappdriver.KeyControl, winappdriver.KeyShift, "b"))
		}},
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("could not enable bookmarks bar: %v", err)
	}
	return nil
}

// SaveBookmark bookmarks the current page with Ctrl+D and confirms the
// dialog. Only the shortcut itself is required to succeed.
func (p *BrowserPage) SaveBookmark(ctx context.Context) error {
	logger.Info("saving bookmark")
	d := p.w.Driver()
	if id, err := p.addressBar.Resolve(ctx, d); err == nil {
		if err := d.Click(ctx, id); err != nil {
			logger.Debug("focusing address bar: %v", err)
		}
	}

	if err := d.SendKeys(ctx, winappdriver.Chord(winappdriver.KeyControl, "d")); err != nil {
		return fmt.Errorf("bookmark shortcut: %w", err)
	}
	if err := ui.Pause(ctx, p.timing.Popup); err != nil {
		return err
	}

	if err := p.w.Click(ctx, p.saveBookmark); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("bookmark dialog not confirmed: %v", err)
	}
	return nil
}

// VerifyBookmarkInBar reports whether the bookmarks bar holds an entry named
// title, exactly or as part of a longer name.
func (p *BrowserPage) VerifyBookmarkInBar(ctx context.Context, title string) bool {
	if !p.IsBookmarksBarVisible(ctx) {
		logger.Warn("bookmarks bar not visible")
		return false
	}

	if p.w.IsPresent(ctx, p.bookmarksBar.Find(ui.ByName(title))) {
		return true
	}

	d := p.w.Driver()
	ids, err := p.bookmarksBar.Find(ui.ByXPath(".//*")).ResolveAll(ctx, d)
	if err != nil {
		logger.Debug("listing bookmarks: %v", err)
		return false
	}
	for _, id := range ids {
		name, err := d.Attribute(ctx, id, "Name")
		if err == nil && name != "" && strings.Contains(name, title) {
			return true
		}
	}
	return false
}

// MaximizeWindow maximizes the browser window.
func (p *BrowserPage) MaximizeWindow(ctx context.Context) error {
	return p.w.Driver().MaximizeWindow(ctx)
}
