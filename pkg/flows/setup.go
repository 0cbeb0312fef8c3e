package flows

import (
	"context"

	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/ui"
)

type setupStep struct {
	name     string
	run      func(ctx context.Context) error
	optional bool
}

// HandleSetup walks the first-run wizard. Skipping apps, the Next after it
// and template selection are optional: newer builds drop those screens.
func (o *Orchestrator) HandleSetup(ctx context.Context) error {
	p, err := o.Pages(ctx)
	if err != nil {
		return err
	}
	setup := p.Setup()

	steps := []setupStep{
		{name: "accept EULA", run: setup.AcceptEULA},
		{name: "next", run: setup.ClickNext},
		{name: "next again", run: setup.ClickNextAgain},
		{name: "skip apps", run: setup.SkipApps, optional: true},
		{name: "next after skip", run: setup.ClickNextAfterSkip, optional: true},
		{name: "select template", run: setup.SelectTemplate, optional: true},
		{name: "open Shift", run: setup.OpenShift},
	}

	for i, step := range steps {
		if i > 1 {
			if err := ui.Pause(ctx, o.timing.SetupStep); err != nil {
				return err
			}
		}
		if err := step.run(ctx); err != nil {
			if !step.optional || ctx.Err() != nil {
				return err
			}
			logger.Warn("optional setup step %q skipped: %v", step.name, err)
		}
	}
	logger.Info("setup completed")
	return nil
}
