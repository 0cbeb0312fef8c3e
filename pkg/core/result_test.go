package core

import (
	"testing"
)

func TestScenarioResult_ComputeSummary(t *testing.T) {
	r := &ScenarioResult{
		Name: "bookmark",
		Steps: []StepResult{
			{Name: "ensure installed", Status: StatusPassed},
			{Name: "maximize", Status: StatusWarned, Optional: true},
			{Name: "navigate", Status: StatusPassed},
			{Name: "save bookmark", Status: StatusFailed},
			{Name: "verify", Status: StatusSkipped},
			{Name: "screenshot", Status: StatusErrored},
		},
	}

	r.ComputeSummary()

	if r.TotalSteps != 6 {
		t.Errorf("TotalSteps = %d, want 6", r.TotalSteps)
	}
	if r.PassedSteps != 2 {
		t.Errorf("PassedSteps = %d, want 2", r.PassedSteps)
	}
	if r.FailedSteps != 2 {
		t.Errorf("FailedSteps = %d, want 2", r.FailedSteps)
	}
	if r.SkippedSteps != 1 {
		t.Errorf("SkippedSteps = %d, want 1", r.SkippedSteps)
	}
	if r.WarnedSteps != 1 {
		t.Errorf("WarnedSteps = %d, want 1", r.WarnedSteps)
	}
}

func TestScenarioResult_AggregateStatus(t *testing.T) {
	tests := []struct {
		name  string
		steps []StepStatus
		want  StepStatus
	}{
		{"empty", nil, StatusPassed},
		{"all passed", []StepStatus{StatusPassed, StatusPassed}, StatusPassed},
		{"warned", []StepStatus{StatusPassed, StatusWarned}, StatusWarned},
		{"errored", []StepStatus{StatusWarned, StatusErrored}, StatusErrored},
		{"failed wins", []StepStatus{StatusErrored, StatusFailed}, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ScenarioResult{}
			for _, s := range tt.steps {
				r.Steps = append(r.Steps, StepResult{Status: s})
			}
			if got := r.AggregateStatus(); got != tt.want {
				t.Errorf("AggregateStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSuiteResult_ComputeSummary(t *testing.T) {
	s := &SuiteResult{
		Scenarios: []ScenarioResult{
			{Name: "navigation", Status: StatusPassed},
			{Name: "bookmark", Status: StatusWarned},
			{Name: "install", Status: StatusErrored},
			{Name: "other", Status: StatusSkipped},
		},
	}

	s.ComputeSummary()

	if s.Total != 4 || s.Passed != 2 || s.Failed != 1 || s.Skipped != 1 {
		t.Errorf("summary = %d/%d/%d/%d, want 4/2/1/1", s.Total, s.Passed, s.Failed, s.Skipped)
	}
}

func TestSuiteResult_Success(t *testing.T) {
	tests := []struct {
		name     string
		statuses []StepStatus
		want     bool
	}{
		{"no scenarios", nil, false},
		{"only skipped", []StepStatus{StatusSkipped}, false},
		{"passed and skipped", []StepStatus{StatusPassed, StatusSkipped}, true},
		{"warned", []StepStatus{StatusWarned}, true},
		{"one failed", []StepStatus{StatusPassed, StatusFailed}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &SuiteResult{}
			for _, st := range tt.statuses {
				s.Scenarios = append(s.Scenarios, ScenarioResult{Status: st})
			}
			if got := s.Success(); got != tt.want {
				t.Errorf("Success() = %v, want %v", got, tt.want)
			}
		})
	}
}
