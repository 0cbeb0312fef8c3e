package flows

import (
	"context"

	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// InstalledVersion opens the advanced settings, where the About panel is
// shown by default, and returns the version text.
func (o *Orchestrator) InstalledVersion(ctx context.Context) (string, error) {
	p, err := o.Pages(ctx)
	if err != nil {
		return "", err
	}
	settings := p.AdvancedSettings()
	if err := settings.OpenQuickSettings(ctx); err != nil {
		return "", err
	}
	if err := settings.OpenAdvancedSettings(ctx); err != nil {
		return "", err
	}
	o.softScreenshot(ctx, VersionScreenshot)
	return settings.VersionText(ctx)
}

// VerifyInstalledVersion opens the About panel and checks that the version
// text contains expected.
func (o *Orchestrator) VerifyInstalledVersion(ctx context.Context, expected string) error {
	p, err := o.Pages(ctx)
	if err != nil {
		return err
	}
	settings := p.AdvancedSettings()
	if err := settings.OpenQuickSettings(ctx); err != nil {
		return err
	}
	if err := settings.OpenAdvancedSettings(ctx); err != nil {
		return err
	}
	if err := settings.OpenAboutShift(ctx); err != nil {
		return err
	}
	o.softScreenshot(ctx, VersionScreenshot)
	return settings.VerifyVersionContains(ctx, expected)
}

func (o *Orchestrator) softScreenshot(ctx context.Context, label string) {
	if _, err := o.Screenshot(ctx, label); err != nil {
		logger.Warn("screenshot %q: %v", label, err)
	}
}
