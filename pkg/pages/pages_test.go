package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/ui"
	"github.com/devicelab-dev/shift-runner/pkg/winappdriver"
	"github.com/devicelab-dev/shift-runner/pkg/winappdriver/wadtest"
)

// testTiming removes every settle pause.
var testTiming = Timing{SweepSteps: 10}

func startBrowser(t *testing.T, elems ...*wadtest.Element) (*wadtest.Server, *Registry) {
	t.Helper()
	srv := wadtest.NewServer()
	t.Cleanup(srv.Close)
	srv.SetApp(elems...)

	c := winappdriver.NewClient(srv.URL)
	require.NoError(t, c.Connect(context.Background(), winappdriver.LaunchCapabilities(`C:\Shift\shift.exe`)))

	w := ui.NewWaiter(c, 300*time.Millisecond, 0).WithInterval(10 * time.Millisecond)
	return srv, NewRegistry(w, testTiming)
}

func checkbox(checkOnClick int) *wadtest.Element {
	return &wadtest.Element{
		Name:       "EULA and Privacy Policy Checkbox",
		Attributes: map[string]string{"AriaProperties": "checked=false"},
		OnClick: func(e *wadtest.Element) {
			if e.Clicks >= checkOnClick {
				e.Attributes["AriaProperties"] = "checked=true"
			}
		},
	}
}

func clicks(srv *wadtest.Server, e *wadtest.Element) int {
	var n int
	srv.Update(func() { n = e.Clicks })
	return n
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

func TestAcceptEULA(t *testing.T) {
	tests := []struct {
		name       string
		checkOn    int
		wantErr    bool
		wantClicks int
	}{
		{"first click", 1, false, 1},
		{"second click", 2, false, 2},
		{"never checks", 99, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := checkbox(tt.checkOn)
			srv, r := startBrowser(t, box)

			err := r.Setup().AcceptEULA(context.Background())
			if tt.wantErr {
				assert.True(t, errors.Is(err, core.ErrCheckboxNotToggled), err)
				assert.Equal(t, core.ErrCategoryAssertion, core.CategoryOf(err))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantClicks, clicks(srv, box))
		})
	}
}

func TestAcceptEULA_AlreadyChecked(t *testing.T) {
	box := checkbox(1)
	box.Attributes["AriaProperties"] = "checked=true"
	srv, r := startBrowser(t, box)

	require.NoError(t, r.Setup().AcceptEULA(context.Background()))
	assert.Zero(t, clicks(srv, box))
}

func TestSetupWizardSequence(t *testing.T) {
	srv, r := startBrowser(t,
		&wadtest.Element{Name: "Go to next step"},
		&wadtest.Element{Name: "Skip without adding apps"},
		&wadtest.Element{Name: "Next"},
		&wadtest.Element{Name: "Select this template and continue"},
	)
	ctx := context.Background()
	setup := r.Setup()

	assert.True(t, setup.IsSetupVisible(ctx))
	require.NoError(t, setup.ClickNext(ctx))
	require.NoError(t, setup.ClickNextAgain(ctx))
	require.NoError(t, setup.SkipApps(ctx))
	require.NoError(t, setup.ClickNextAfterSkip(ctx))
	require.NoError(t, setup.SelectTemplate(ctx))

	assert.Equal(t, []string{
		"Go to next step",
		"Go to next step",
		"Skip without adding apps",
		"Next",
		"Select this template and continue",
	}, clickEvents(srv.Events()))
}

func TestSetupStepMissing(t *testing.T) {
	_, r := startBrowser(t, &wadtest.Element{Name: "Go to next step"})

	err := r.Setup().SkipApps(context.Background())
	assert.True(t, errors.Is(err, core.ErrWaitTimeout), err)
	assert.True(t, r.Setup().IsSetupVisible(context.Background()))
}

func TestOpenShift_FoundBySweep(t *testing.T) {
	button := &wadtest.Element{}
	srv, r := startBrowser(t, &wadtest.Element{Name: "Shift", Children: []*wadtest.Element{button}})
	srv.Update(func() {
		srv.OnMove = func(x, _, _ int) {
			if x <= -60 {
				button.Name = "Open Shift"
			}
		}
	})

	require.NoError(t, r.Setup().OpenShift(context.Background()))
	assert.Equal(t, 1, clicks(srv, button))

	events := srv.Events()
	assert.Contains(t, events, "moveto +0,-100")
	assert.Contains(t, events, "moveto Open Shift")
	assert.Contains(t, events, "mouseclick")
}

func TestOpenShift_NotFound(t *testing.T) {
	_, r := startBrowser(t, &wadtest.Element{Name: "Shift"})

	err := r.Setup().OpenShift(context.Background())
	assert.True(t, errors.Is(err, core.ErrElementNotFound), err)
	assert.Contains(t, err.Error(), "Open Shift")
}

func TestNavigateTo_AddressBar(t *testing.T) {
	omnibox := &wadtest.Element{
		AutomationID: "omnibox-textbox",
		Text:         "about:blank",
		OnSubmit:     func(e *wadtest.Element) { e.Text = "https://www.google.com/" },
	}
	srv, r := startBrowser(t, omnibox)
	ctx := context.Background()
	browser := r.Browser()

	require.NoError(t, browser.NavigateTo(ctx, "https://www.google.com"))
	require.NoError(t, browser.WaitForAddressContaining(ctx, "google.com"))

	addr, err := browser.CurrentAddress(ctx)
	require.NoError(t, err)
	assert.Contains(t, addr, "google.com")

	events := srv.Events()
	assert.Contains(t, events, "click #omnibox-textbox")
	assert.Contains(t, events, "clear #omnibox-textbox")
	assert.Empty(t, srv.Keys())
}

func TestNavigateTo_FallsBackToShortcut(t *testing.T) {
	srv, r := startBrowser(t)

	require.NoError(t, r.Browser().NavigateTo(context.Background(), "https://rdbrck.com"))
	assert.Equal(t, []string{
		winappdriver.Chord(winappdriver.KeyControl, "l"),
		"https://rdbrck.com" + winappdriver.KeyEnter,
	}, srv.Keys())
}

func TestNavigateTo_Canceled(t *testing.T) {
	_, r := startBrowser(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Browser().NavigateTo(ctx, "https://rdbrck.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), err)
}

func TestWaitForAddress_Timeout(t *testing.T) {
	_, r := startBrowser(t, &wadtest.Element{AutomationID: "omnibox-textbox", Text: "about:blank"})

	err := r.Browser().WaitForAddressContaining(context.Background(), "google.com")
	assert.True(t, errors.Is(err, core.ErrWaitTimeout), err)
}

func TestToolbarButtons(t *testing.T) {
	back := &wadtest.Element{Name: "Back", Disabled: true}
	srv, r := startBrowser(t,
		back,
		&wadtest.Element{Name: "Forward"},
		&wadtest.Element{Name: "Refresh"},
		&wadtest.Element{Name: "New Tab"},
	)
	ctx := context.Background()
	browser := r.Browser()

	enabled, err := browser.IsBackEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	srv.Update(func() { back.Disabled = false })
	require.NoError(t, browser.ClickBack(ctx))
	require.NoError(t, browser.ClickForward(ctx))
	require.NoError(t, browser.ClickRefresh(ctx))
	require.NoError(t, browser.OpenNewTab(ctx))
	require.NoError(t, browser.MaximizeWindow(ctx))

	assert.Equal(t, []string{"Back", "Forward", "Refresh", "New Tab"}, clickEvents(srv.Events()))
}

func TestEnsureBookmarksBarVisible_AlreadyShown(t *testing.T) {
	srv, r := startBrowser(t, &wadtest.Element{Name: "Bookmarks"})

	require.NoError(t, r.Browser().EnsureBookmarksBarVisible(context.Background()))
	assert.Empty(t, srv.Keys())
	assert.Empty(t, clickEvents(srv.Events()))
}

func TestEnsureBookmarksBarVisible_ThroughSettings(t *testing.T) {
	bar := &wadtest.Element{Name: "Bookmarks", Hidden: true}
	omnibox := &wadtest.Element{AutomationID: "omnibox-textbox"}
	toggle := &wadtest.Element{
		Name:    "Show Bookmarks Bar",
		OnClick: func(*wadtest.Element) { bar.Hidden = false },
	}
	srv, r := startBrowser(t, omnibox, bar, toggle)
	ctx := context.Background()

	require.NoError(t, r.Browser().EnsureBookmarksBarVisible(ctx))
	assert.True(t, r.Browser().IsBookmarksBarVisible(ctx))
	assert.Contains(t, srv.Events(), fmt.Sprintf("type #omnibox-textbox %q", AppearanceSettingsURL+winappdriver.KeyEnter))
	assert.Empty(t, srv.Keys())
}

func TestEnsureBookmarksBarVisible_ShortcutFallback(t *testing.T) {
	srv, r := startBrowser(t, &wadtest.Element{AutomationID: "omnibox-textbox"})

	require.NoError(t, r.Browser().EnsureBookmarksBarVisible(context.Background()))
	assert.Contains(t, srv.Keys(), winappdriver.Chord(winappdriver.KeyControl, winappdriver.KeyShift, "b"))
}

func TestSaveBookmark(t *testing.T) {
	save := &wadtest.Element{Name: "Save"}
	srv, r := startBrowser(t, &wadtest.Element{AutomationID: "omnibox-textbox"}, save)

	require.NoError(t, r.Browser().SaveBookmark(context.Background()))
	assert.Equal(t, []string{winappdriver.Chord(winappdriver.KeyControl, "d")}, srv.Keys())
	assert.Equal(t, 1, clicks(srv, save))
}

func TestSaveBookmark_DialogMissing(t *testing.T) {
	srv, r := startBrowser(t)

	require.NoError(t, r.Browser().SaveBookmark(context.Background()))
	assert.Len(t, srv.Keys(), 1)
}

func TestHasBookmark(t *testing.T) {
	bar := func(hidden bool) *wadtest.Element {
		return &wadtest.Element{
			Name:   "Bookmarks",
			Hidden: hidden,
			Children: []*wadtest.Element{
				{Name: "Getting started"},
				{Name: "RedBrck Video | Photo Production"},
			},
		}
	}

	tests := []struct {
		name   string
		hidden bool
		title  string
		want   bool
	}{
		{"exact", false, "RedBrck Video | Photo Production", true},
		{"partial", false, "Photo Production", true},
		{"missing", false, "Redbrick", false},
		{"bar hidden", true, "Getting started", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, r := startBrowser(t, bar(tt.hidden))
			assert.Equal(t, tt.want, r.Browser().VerifyBookmarkInBar(context.Background(), tt.title))
		})
	}
}

func TestOpenQuickSettings_HoverClick(t *testing.T) {
	quick := &wadtest.Element{Name: "Quick Settings"}
	srv, r := startBrowser(t, quick)

	require.NoError(t, r.AdvancedSettings().OpenQuickSettings(context.Background()))
	assert.Equal(t, 1, clicks(srv, quick))
	assert.Contains(t, srv.Events(), "moveto Quick Settings")
}

func TestOpenQuickSettings_Missing(t *testing.T) {
	_, r := startBrowser(t)

	err := r.AdvancedSettings().OpenQuickSettings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hover click")
	assert.True(t, errors.Is(err, core.ErrWaitTimeout), err)
}

func TestVersion(t *testing.T) {
	srv, r := startBrowser(t,
		&wadtest.Element{Name: "Advanced Settings"},
		&wadtest.Element{AutomationID: "about-menu"},
		&wadtest.Element{Name: "Version 9.3.1.0 (Official Build)"},
	)
	ctx := context.Background()
	settings := r.AdvancedSettings()

	require.NoError(t, settings.OpenAdvancedSettings(ctx))
	require.NoError(t, settings.OpenAboutShift(ctx))

	text, err := settings.VersionText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Version 9.3.1.0 (Official Build)", text)

	assert.NoError(t, settings.VerifyVersionContains(ctx, "9.3.1.0"))

	err = settings.VerifyVersionContains(ctx, "9.4.0.0")
	assert.True(t, errors.Is(err, core.ErrVersionMismatch), err)
	assert.Contains(t, err.Error(), "9.4.0.0")

	assert.Equal(t, []string{"Advanced Settings", "#about-menu"}, clickEvents(srv.Events()))
}

func TestVersion_NotShown(t *testing.T) {
	_, r := startBrowser(t)

	_, err := r.AdvancedSettings().VersionText(context.Background())
	assert.True(t, errors.Is(err, core.ErrWaitTimeout), err)
}

func TestRegistry(t *testing.T) {
	srv, r := startBrowser(t)

	setup := r.Setup()
	browser := r.Browser()
	advanced := r.AdvancedSettings()
	assert.Same(t, setup, r.Setup())
	assert.Same(t, browser, r.Browser())
	assert.Same(t, advanced, r.AdvancedSettings())

	other := winappdriver.NewClient(srv.URL)
	r.Reset(other)

	assert.NotSame(t, setup, r.Setup())
	assert.NotSame(t, browser, r.Browser())
	assert.NotSame(t, advanced, r.AdvancedSettings())
	assert.Same(t, ui.Driver(other), r.Waiter().Driver())
	assert.Equal(t, 300*time.Millisecond, r.Waiter().Timeout())
}
