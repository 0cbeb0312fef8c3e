// Package scenario defines the end-to-end test cases and the runner that
// executes them with listener hooks, tag filtering and failure captures.
package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/flows"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/pages"
)

// Scenario is one named test case.
type Scenario struct {
	Name        string
	Description string
	Tags        []string

	Run func(ctx context.Context, t *T) error
	// Teardown runs after Run, whatever its outcome. Optional.
	Teardown func(ctx context.Context, t *T)
}

// HasTag reports whether the scenario carries tag.
func (s Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Delays are the fixed waits scenarios take for page loads and animations.
type Delays struct {
	Settle   time.Duration // after toggles and popups
	PageLoad time.Duration // after navigating to a content page
}

// DefaultDelays returns the waits used against a real browser.
func DefaultDelays() Delays {
	return Delays{Settle: 2 * time.Second, PageLoad: 5 * time.Second}
}

// T is handed to a running scenario. It records steps and attachments into
// the scenario result.
type T struct {
	flows  *flows.Orchestrator
	delays Delays
	result *core.ScenarioResult
}

// Flows returns the flow orchestrator.
func (t *T) Flows() *flows.Orchestrator { return t.flows }

// Delays returns the configured fixed waits.
func (t *T) Delays() Delays { return t.delays }

// Pages returns the page registry for the current session.
func (t *T) Pages(ctx context.Context) (*pages.Registry, error) {
	return t.flows.Pages(ctx)
}

// Step runs fn as a recorded step and returns its error.
func (t *T) Step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	logger.Info("step: %s", name)
	start := time.Now()
	err := fn(ctx)

	step := core.StepResult{
		Name:      name,
		Status:    core.StatusForError(err),
		StartTime: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		step.Error = err.Error()
		logger.Error("step %q failed: %v", name, err)
	}
	t.result.Steps = append(t.result.Steps, step)
	return err
}

// Optional runs fn as a step whose failure is recorded as a warning.
// Only cancellation is returned.
func (t *T) Optional(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	logger.Info("step: %s", name)
	start := time.Now()
	err := fn(ctx)

	step := core.StepResult{
		Name:      name,
		Status:    core.StatusPassed,
		Optional:  true,
		StartTime: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		step.Status = core.StatusWarned
		step.Error = err.Error()
		logger.Warn("optional step %q failed: %v", name, err)
	}
	t.result.Steps = append(t.result.Steps, step)
	return ctx.Err()
}

// Screenshot captures the session and attaches the file to the result.
// Failures are logged.
func (t *T) Screenshot(ctx context.Context, label string) {
	att, err := t.flows.Screenshot(ctx, label)
	if err != nil {
		logger.Warn("screenshot was not saved: %v", err)
		return
	}
	t.result.Attachments = append(t.result.Attachments, att)
}

// Check returns an assertion failure when ok is false.
func (t *T) Check(ok bool, format string, args ...interface{}) error {
	if ok {
		return nil
	}
	return core.ErrConditionNotMet.WithMessage(fmt.Sprintf(format, args...))
}
