// Package pages models the Shift browser's screens as page objects.
//
// Pages hold lazy element references and do all waiting through a
// ui.Waiter, so a page stays valid for as long as its session does. When
// the session is replaced, Registry.Reset rebinds every page.
package pages

import (
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/ui"
)

// Timing holds the fixed settle pauses the browser UI needs between steps.
type Timing struct {
	CheckboxSettle  time.Duration // after toggling a checkbox
	Transition      time.Duration // between setup wizard screens
	OpenShiftSettle time.Duration // before sweeping for "Open Shift"
	SettingsLoad    time.Duration // after opening a chrome:// settings page
	Popup           time.Duration // for menus and dialogs to open
	SweepSteps      int
	SweepDelay      time.Duration
}

// DefaultTiming returns the pauses used against a real browser.
func DefaultTiming() Timing {
	return Timing{
		CheckboxSettle:  300 * time.Millisecond,
		Transition:      time.Second,
		OpenShiftSettle: 3 * time.Second,
		SettingsLoad:    2 * time.Second,
		Popup:           time.Second,
		SweepSteps:      100,
		SweepDelay:      10 * time.Millisecond,
	}
}

// Registry creates each page on first use and shares one waiter between
// them.
type Registry struct {
	w      *ui.Waiter
	timing Timing

	setup    *SetupPage
	browser  *BrowserPage
	advanced *AdvancedSettingsPage
}

// NewRegistry creates a registry over w.
func NewRegistry(w *ui.Waiter, timing Timing) *Registry {
	return &Registry{w: w, timing: timing}
}

// Waiter returns the shared waiter.
func (r *Registry) Waiter() *ui.Waiter { return r.w }

// Reset drops every cached page and binds later pages to d. Call it after
// the session was replaced.
func (r *Registry) Reset(d ui.Driver) {
	r.w = r.w.WithDriver(d)
	r.setup = nil
	r.browser = nil
	r.advanced = nil
}

// Setup returns the first-run wizard page.
func (r *Registry) Setup() *SetupPage {
	if r.setup == nil {
		r.setup = NewSetupPage(r.w, r.timing)
	}
	return r.setup
}

// Browser returns the main browser window page.
func (r *Registry) Browser() *BrowserPage {
	if r.browser == nil {
		r.browser = NewBrowserPage(r.w, r.timing)
	}
	return r.browser
}

// AdvancedSettings returns the settings and about page.
func (r *Registry) AdvancedSettings() *AdvancedSettingsPage {
	if r.advanced == nil {
		r.advanced = NewAdvancedSettingsPage(r.w, r.timing)
	}
	return r.advanced
}
