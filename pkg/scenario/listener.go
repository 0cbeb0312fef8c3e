package scenario

import (
	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// Listener observes scenario lifecycle events.
type Listener interface {
	OnStart(sc *Scenario)
	OnPass(res *core.ScenarioResult)
	OnFail(res *core.ScenarioResult, err error)
	OnSkip(res *core.ScenarioResult)
}

// ListenerFuncs adapts optional callbacks to a Listener.
type ListenerFuncs struct {
	Start func(sc *Scenario)
	Pass  func(res *core.ScenarioResult)
	Fail  func(res *core.ScenarioResult, err error)
	Skip  func(res *core.ScenarioResult)
}

// OnStart implements Listener.
func (l ListenerFuncs) OnStart(sc *Scenario) {
	if l.Start != nil {
		l.Start(sc)
	}
}

// OnPass implements Listener.
func (l ListenerFuncs) OnPass(res *core.ScenarioResult) {
	if l.Pass != nil {
		l.Pass(res)
	}
}

// OnFail implements Listener.
func (l ListenerFuncs) OnFail(res *core.ScenarioResult, err error) {
	if l.Fail != nil {
		l.Fail(res, err)
	}
}

// OnSkip implements Listener.
func (l ListenerFuncs) OnSkip(res *core.ScenarioResult) {
	if l.Skip != nil {
		l.Skip(res)
	}
}

// LogListener writes lifecycle events to the run log.
type LogListener struct{}

// OnStart implements Listener.
func (LogListener) OnStart(sc *Scenario) { logger.Info("Test Started: %s", sc.Name) }

// OnPass implements Listener.
func (LogListener) OnPass(res *core.ScenarioResult) {
	logger.Info("Test Passed: %s (%s)", res.Name, res.Duration)
}

// OnFail implements Listener.
func (LogListener) OnFail(res *core.ScenarioResult, err error) {
	logger.Error("Test Failed: %s: %v", res.Name, err)
}

// OnSkip implements Listener.
func (LogListener) OnSkip(res *core.ScenarioResult) {
	logger.Info("Test Skipped: %s", res.Name)
}
