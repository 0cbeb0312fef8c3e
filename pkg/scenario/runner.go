package scenario

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/flows"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Name        string   // Suite name for reports
	Names       []string // Scenario names to run; empty means all
	IncludeTags []string // Run only scenarios with at least one of these tags
	ExcludeTags []string // Never run scenarios with any of these tags
	Listeners   []Listener
	Delays      *Delays
}

// Runner executes scenarios one after another against one session.
type Runner struct {
	config RunnerConfig
	flows  *flows.Orchestrator
	delays Delays
}

// NewRunner creates a runner.
func NewRunner(orch *flows.Orchestrator, cfg RunnerConfig) *Runner {
	r := &Runner{config: cfg, flows: orch, delays: DefaultDelays()}
	if cfg.Delays != nil {
		r.delays = *cfg.Delays
	}
	if r.config.Name == "" {
		r.config.Name = "Shift Browser Suite"
	}
	return r
}

// AddListener registers l for the following runs.
func (r *Runner) AddListener(l Listener) {
	r.config.Listeners = append(r.config.Listeners, l)
}

// Select returns the scenarios that pass the name and tag filters, in
// their original order.
func (r *Runner) Select(all []Scenario) []Scenario {
	var out []Scenario
	for _, sc := range all {
		if len(r.config.Names) > 0 && !contains(r.config.Names, sc.Name) {
			continue
		}
		if len(r.config.IncludeTags) > 0 && !hasAny(sc, r.config.IncludeTags) {
			continue
		}
		if hasAny(sc, r.config.ExcludeTags) {
			continue
		}
		out = append(out, sc)
	}
	return out
}

// Run executes the selected scenarios and quits the session afterwards.
// Scenarios left when ctx ends are reported as skipped.
func (r *Runner) Run(ctx context.Context, all []Scenario) *core.SuiteResult {
	settings := r.flows.Sessions().Settings()
	suite := &core.SuiteResult{
		Name:      r.config.Name,
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
		ServerURL: settings.WinAppDriverURL(),
	}
	logger.Info("Test Suite Started: %s (run %s)", suite.Name, suite.RunID)

	defer func() {
		logger.Info("tearing down test suite")
		r.flows.Sessions().Quit()
	}()

	for _, sc := range r.Select(all) {
		if ctx.Err() != nil {
			suite.Scenarios = append(suite.Scenarios, r.skip(sc, "run cancelled"))
			continue
		}
		suite.Scenarios = append(suite.Scenarios, r.runOne(ctx, sc))
	}

	suite.BrowserPath = settings.BrowserPath()
	suite.InstalledBuild = r.flows.LastInstalledVersion()
	suite.Duration = time.Since(suite.StartTime)
	suite.ComputeSummary()
	logger.Info("Test Suite Finished: %s: %d passed, %d failed, %d skipped",
		suite.Name, suite.Passed, suite.Failed, suite.Skipped)
	return suite
}

func (r *Runner) skip(sc Scenario, reason string) core.ScenarioResult {
	res := core.ScenarioResult{
		Name:        sc.Name,
		Description: sc.Description,
		Tags:        sc.Tags,
		Status:      core.StatusSkipped,
		StartTime:   time.Now(),
		Error:       reason,
	}
	for _, l := range r.config.Listeners {
		l.OnSkip(&res)
	}
	return res
}

func (r *Runner) runOne(ctx context.Context, sc Scenario) core.ScenarioResult {
	res := core.ScenarioResult{
		Name:        sc.Name,
		Description: sc.Description,
		Tags:        sc.Tags,
		Status:      core.StatusRunning,
		StartTime:   time.Now(),
	}
	for _, l := range r.config.Listeners {
		l.OnStart(&sc)
	}

	t := &T{flows: r.flows, delays: r.delays, result: &res}
	err := protect(sc.Name, func() error { return sc.Run(ctx, t) })

	if err != nil {
		r.captureFailure(ctx, sc, &res)
	}
	if sc.Teardown != nil {
		if terr := protect(sc.Name+" teardown", func() error { sc.Teardown(context.WithoutCancel(ctx), t); return nil }); terr != nil {
			logger.Error("%v", terr)
		}
	}

	res.Duration = time.Since(res.StartTime)
	res.ComputeSummary()
	res.Status = res.AggregateStatus()
	if err != nil {
		res.Status = core.StatusForError(err)
		res.Category = core.CategoryOf(err)
		res.Error = err.Error()
	}

	for _, l := range r.config.Listeners {
		if res.Status.IsSuccess() {
			l.OnPass(&res)
		} else {
			l.OnFail(&res, err)
		}
	}
	return res
}

// captureFailure saves a screenshot when take.screenshot.on.failure is set
// and a session is open.
func (r *Runner) captureFailure(ctx context.Context, sc Scenario, res *core.ScenarioResult) {
	c := r.flows.Sessions().Current()
	if c == nil {
		logger.Warn("no session, cannot take failure screenshot")
		return
	}
	att, ok, err := r.flows.Screenshots().CaptureFailure(context.WithoutCancel(ctx), c, sc.Name)
	if err != nil {
		logger.Warn("failure screenshot: %v", err)
		return
	}
	if ok {
		res.Attachments = append(res.Attachments, att)
	}
}

// protect converts a panic in fn into an error.
func protect(name string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("%s panicked: %v\n%s", name, p, debug.Stack())
			err = fmt.Errorf("%s panicked: %v", name, p)
		}
	}()
	return fn()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasAny(sc Scenario, tags []string) bool {
	for _, t := range tags {
		if sc.HasTag(t) {
			return true
		}
	}
	return false
}
