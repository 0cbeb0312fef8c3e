package pages

import (
	"context"
	"strings"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/ui"
)

// AdvancedSettingsPage covers the quick settings menu and the About panel
// that shows the installed version.
type AdvancedSettingsPage struct {
	w      *ui.Waiter
	timing Timing

	quickSettings    *ui.Element
	advancedSettings *ui.Element
	about            *ui.Element
	version          *ui.Element
}

// NewAdvancedSettingsPage creates the page.
func NewAdvancedSettingsPage(w *ui.Waiter, timing Timing) *AdvancedSettingsPage {
	return &AdvancedSettingsPage{
		w:                w,
		timing:           timing,
		quickSettings:    ui.Find(ui.ByName("Quick Settings")),
		advancedSettings: ui.Find(ui.ByName("Advanced Settings")),
		about:            ui.Find(ui.ByAccessibilityID("about-menu")).Named("About Shift"),
		version:          ui.Find(ui.ByXPath("//*[starts-with(@Name, 'Version ')]")).Named("version text"),
	}
}

// OpenQuickSettings opens the quick settings menu, hovering onto the button
// first and falling back to a plain click.
func (p *AdvancedSettingsPage) OpenQuickSettings(ctx context.Context) error {
	logger.Info("opening Quick Settings")
	err := ui.Attempt(ctx,
		ui.Strategy{Name: "hover click", Run: func(ctx context.Context) error {
			return p.w.HoverClick(ctx, p.quickSettings)
		}},
		ui.Strategy{Name: "click", Run: func(ctx context.Context) error {
			return p.w.Click(ctx, p.quickSettings)
		}},
	)
	if err != nil {
		return err
	}
	return ui.Pause(ctx, p.timing.Popup)
}

// OpenAdvancedSettings opens the advanced settings panel.
func (p *AdvancedSettingsPage) OpenAdvancedSettings(ctx context.Context) error {
	logger.Info("opening Advanced Settings")
	if err := p.w.Click(ctx, p.advancedSettings); err != nil {
		return err
	}
	return ui.Pause(ctx, p.timing.Popup)
}

// OpenAboutShift opens the About panel.
func (p *AdvancedSettingsPage) OpenAboutShift(ctx context.Context) error {
	logger.Info("opening About Shift")
	if err := p.w.Click(ctx, p.about); err != nil {
		return err
	}
	return ui.Pause(ctx, p.timing.Popup)
}

// VersionText returns the "Version x.y.z" label once it is visible.
func (p *AdvancedSettingsPage) VersionText(ctx context.Context) (string, error) {
	if err := p.w.WaitVisible(ctx, p.version); err != nil {
		return "", err
	}
	text, err := p.w.Attribute(ctx, p.version, "Name")
	if err != nil {
		return "", err
	}
	logger.Info("found version text: %s", text)
	return text, nil
}

// VerifyVersionContains fails with core.ErrVersionMismatch unless the displayed
// version text contains expected.
func (p *AdvancedSettingsPage) VerifyVersionContains(ctx context.Context, expected string) error {
	text, err := p.VersionText(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(text, expected) {
		return core.ErrVersionMismatch.
			WithMessagef("expected version %s, displayed %q", expected, text).
			WithDetails(map[string]interface{}{"expected": expected, "displayed": text})
	}
	return nil
}
