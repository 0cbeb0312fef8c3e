package core

import (
	"time"
)

// StepResult captures the outcome of one step inside a scenario
// ("accept EULA", "navigate to https://www.google.com").
type StepResult struct {
	Name      string        `json:"name"`
	Status    StepStatus    `json:"status"`
	Optional  bool          `json:"optional,omitempty"` // failure downgrades to warned
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// ScenarioResult captures the complete outcome of executing a scenario
type ScenarioResult struct {
	// Identity
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Status (aggregated from steps and the scenario error)
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps       []StepResult `json:"steps"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
	WarnedSteps  int `json:"warnedSteps"`

	Error string `json:"error,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (r *ScenarioResult) ComputeSummary() {
	r.TotalSteps = len(r.Steps)
	r.PassedSteps = 0
	r.FailedSteps = 0
	r.SkippedSteps = 0
	r.WarnedSteps = 0

	for _, step := range r.Steps {
		switch step.Status {
		case StatusPassed:
			r.PassedSteps++
		case StatusFailed, StatusErrored:
			r.FailedSteps++
		case StatusSkipped:
			r.SkippedSteps++
		case StatusWarned:
			r.WarnedSteps++
		}
	}
}

// AggregateStatus determines the scenario status from its steps.
// Rules:
// - Any failed/errored step → that status (failed wins over errored)
// - Any warned step → StatusWarned
// - Otherwise → StatusPassed
func (r *ScenarioResult) AggregateStatus() StepStatus {
	status := StatusPassed
	for _, step := range r.Steps {
		switch step.Status {
		case StatusFailed:
			return StatusFailed
		case StatusErrored:
			status = StatusErrored
		case StatusWarned:
			if status == StatusPassed {
				status = StatusWarned
			}
		}
	}
	return status
}

// SuiteResult captures the complete outcome of executing multiple scenarios
type SuiteResult struct {
	Name  string `json:"name"`
	RunID string `json:"runId"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Environment captured for reports
	ServerURL      string `json:"serverUrl,omitempty"`
	BrowserPath    string `json:"browserPath,omitempty"`
	InstalledBuild string `json:"installedVersion,omitempty"`

	Scenarios []ScenarioResult `json:"scenarios"`

	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ComputeSummary calculates scenario counts from the Scenarios slice
func (s *SuiteResult) ComputeSummary() {
	s.Total = len(s.Scenarios)
	s.Passed = 0
	s.Failed = 0
	s.Skipped = 0

	for _, sc := range s.Scenarios {
		switch sc.Status {
		case StatusPassed, StatusWarned:
			s.Passed++
		case StatusFailed, StatusErrored:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
}

// Success returns true if every executed scenario passed (including warned)
// and at least one ran.
func (s *SuiteResult) Success() bool {
	ran := 0
	for _, sc := range s.Scenarios {
		if sc.Status == StatusSkipped {
			continue
		}
		if !sc.Status.IsSuccess() {
			return false
		}
		ran++
	}
	return ran > 0
}
