package ui

import (
	"context"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// Sweep describes a pointer sweep for controls that only appear in the UI
// Automation tree while hovered.
type Sweep struct {
	// Candidates is queried after every pointer move.
	Candidates By
	// Match filters candidates by Name. Nil accepts any displayed candidate.
	Match func(name string) bool

	StartX, StartY int // first relative move
	StepX, StepY   int // move after each miss

	MaxSteps  int
	StepDelay time.Duration
}

// SweepFind moves the pointer by the start offset, then up to MaxSteps
// times queries the candidates and returns the first displayed match,
// nudging the pointer by the step offset between queries. The implicit wait
// is zeroed for the sweep and restored afterwards.
func (w *Waiter) SweepFind(ctx context.Context, s Sweep) (string, error) {
	if err := w.driver.SetImplicitWait(ctx, 0); err != nil {
		logger.Warn("failed to clear implicit wait for sweep: %v", err)
	}
	defer func() {
		if err := w.driver.SetImplicitWait(context.WithoutCancel(ctx), w.implicit); err != nil {
			logger.Warn("failed to restore implicit wait: %v", err)
		}
	}()

	if err := w.driver.MoveTo(ctx, "", s.StartX, s.StartY); err != nil {
		logger.Warn("sweep start move failed: %v", err)
	}

	logger.Info("sweeping pointer for %s", s.Candidates)
	for step := 0; step < s.MaxSteps; step++ {
		if id, ok := w.sweepMatch(ctx, s); ok {
			logger.Info("found %s at sweep step %d", s.Candidates, step)
			return id, nil
		}
		if err := w.driver.MoveTo(ctx, "", s.StepX, s.StepY); err != nil {
			logger.Debug("sweep move failed: %v", err)
		}
		if err := Pause(ctx, s.StepDelay); err != nil {
			return "", err
		}
	}
	return "", core.ErrElementNotFound.WithMessagef("%s not found after %d sweep steps", s.Candidates, s.MaxSteps)
}

// sweepMatch suppresses every lookup error: during a sweep the tree changes
// under the pointer and failures just mean "not yet".
func (w *Waiter) sweepMatch(ctx context.Context, s Sweep) (string, bool) {
	ids, err := w.driver.FindElements(ctx, s.Candidates.Using, s.Candidates.Value)
	if err != nil {
		return "", false
	}
	for _, id := range ids {
		displayed, err := w.driver.IsDisplayed(ctx, id)
		if err != nil || !displayed {
			continue
		}
		if s.Match != nil {
			name, err := w.driver.Attribute(ctx, id, "Name")
			if err != nil || !s.Match(name) {
				continue
			}
		}
		return id, true
	}
	return "", false
}
