package pages

import (
	"context"
	"strings"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/ui"
)

// eulaAttempts bounds how often the EULA checkbox is clicked.
const eulaAttempts = 2

// SetupPage is the first-run wizard shown after a fresh install.
type SetupPage struct {
	w      *ui.Waiter
	timing Timing

	eula           *ui.Element
	next           *ui.Element
	skipApps       *ui.Element
	nextAfterSkip  *ui.Element
	selectTemplate *ui.Element
}

// NewSetupPage creates the page.
func NewSetupPage(w *ui.Waiter, timing Timing) *SetupPage {
	return &SetupPage{
		w:              w,
		timing:         timing,
		eula:           ui.Find(ui.ByName("EULA and Privacy Policy Checkbox")),
		next:           ui.Find(ui.ByName("Go to next step")),
		skipApps:       ui.Find(ui.ByName("Skip without adding apps")),
		nextAfterSkip:  ui.Find(ui.ByName("Next")),
		selectTemplate: ui.Find(ui.ByName("Select this template and continue")),
	}
}

// IsSetupVisible reports whether the wizard is showing.
func (p *SetupPage) IsSetupVisible(ctx context.Context) bool {
	return p.w.IsPresent(ctx, p.eula) || p.w.IsPresent(ctx, p.next)
}

// AcceptEULA ticks the EULA checkbox, clicking at most twice.
func (p *SetupPage) AcceptEULA(ctx context.Context) error {
	logger.Info("accepting EULA")
	if err := p.w.WaitClickable(ctx, p.eula); err != nil {
		return err
	}

	for attempt := 0; attempt < eulaAttempts; attempt++ {
		if p.isChecked(ctx) {
			break
		}
		id, err := p.eula.Resolve(ctx, p.w.Driver())
		if err == nil {
			err = p.w.Driver().Click(ctx, id)
		}
		if err != nil {
			logger.Warn("EULA click attempt %d failed: %v", attempt+1, err)
		}
		if err := ui.Pause(ctx, p.timing.CheckboxSettle); err != nil {
			return err
		}
	}

	if !p.isChecked(ctx) {
		return core.ErrCheckboxNotToggled.WithMessage("failed to check the EULA and Privacy Policy Checkbox")
	}
	return nil
}

func (p *SetupPage) isChecked(ctx context.Context) bool {
	aria, err := p.w.Attribute(ctx, p.eula, "AriaProperties")
	return err == nil && strings.Contains(aria, "checked=true")
}

// ClickNext advances from the EULA screen.
func (p *SetupPage) ClickNext(ctx context.Context) error {
	logger.Info("clicking Next")
	return p.w.Click(ctx, p.next)
}

// ClickNextAgain advances from the second wizard screen.
func (p *SetupPage) ClickNextAgain(ctx context.Context) error {
	logger.Info("clicking Next again")
	return p.afterTransition(ctx, p.next)
}

// SkipApps skips the app picker.
func (p *SetupPage) SkipApps(ctx context.Context) error {
	logger.Info("skipping apps")
	return p.afterTransition(ctx, p.skipApps)
}

// ClickNextAfterSkip advances past the app picker.
func (p *SetupPage) ClickNextAfterSkip(ctx context.Context) error {
	logger.Info("clicking Next after skip")
	return p.afterTransition(ctx, p.nextAfterSkip)
}

// SelectTemplate accepts the default workspace template.
func (p *SetupPage) SelectTemplate(ctx context.Context) error {
	logger.Info("selecting template")
	return p.afterTransition(ctx, p.selectTemplate)
}

func (p *SetupPage) afterTransition(ctx context.Context, el *ui.Element) error {
	if err := ui.Pause(ctx, p.timing.Transition); err != nil {
		return err
	}
	if err := p.w.WaitClickable(ctx, el); err != nil {
		return err
	}
	return p.w.Click(ctx, el)
}

// OpenShift finishes the wizard. The button only enters the UI Automation
// tree while hovered, so the pointer is swept across the window to find it.
func (p *SetupPage) OpenShift(ctx context.Context) error {
	logger.Info("waiting for 'Open Shift'")
	if err := ui.Pause(ctx, p.timing.OpenShiftSettle); err != nil {
		return err
	}

	id, err := p.w.SweepFind(ctx, ui.Sweep{
		Candidates: ui.ByXPath("//*[contains(@Name, 'Open Shift')]"),
		Match:      func(name string) bool { return strings.Contains(name, "Open Shift") },
		StartY:     -100,
		StepX:      -30,
		MaxSteps:   p.timing.SweepSteps,
		StepDelay:  p.timing.SweepDelay,
	})
	if err != nil {
		return core.ErrElementNotFound.WithMessage("could not find 'Open Shift' button even after pointer sweep").WithCause(err)
	}

	logger.Info("clicking 'Open Shift'")
	d := p.w.Driver()
	if err := d.MoveToElement(ctx, id); err != nil {
		return err
	}
	return d.MouseClick(ctx, 0)
}
