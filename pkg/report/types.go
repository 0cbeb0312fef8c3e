// Package report writes suite results to disk.
//
// Layout of a report directory:
//   - report.json: run index, rewritten after every scenario event
//   - allure-results/: one result file per scenario plus attachments
//   - junit.xml: JUnit summary for CI systems
//   - report.html: standalone summary page
package report

import (
	"path/filepath"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// statusOf folds a step status into the coarser report status. Warned
// counts as passed, errored as failed.
func statusOf(s core.StepStatus) Status {
	switch s {
	case core.StatusPending:
		return StatusPending
	case core.StatusRunning:
		return StatusRunning
	case core.StatusPassed, core.StatusWarned:
		return StatusPassed
	case core.StatusSkipped:
		return StatusSkipped
	default:
		return StatusFailed
	}
}

// Index is the report.json document.
type Index struct {
	Version     string          `json:"version"`
	RunID       string          `json:"runId"`
	Name        string          `json:"name"`
	UpdateSeq   uint64          `json:"updateSeq"`
	Status      Status          `json:"status"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     *time.Time      `json:"endTime,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Environment Environment     `json:"environment"`
	Summary     Summary         `json:"summary"`
	Scenarios   []ScenarioEntry `json:"scenarios"`
}

// Environment describes where the suite ran.
type Environment struct {
	ServerURL        string `json:"serverUrl,omitempty"`
	BrowserPath      string `json:"browserPath,omitempty"`
	InstalledVersion string `json:"installedVersion,omitempty"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// ScenarioEntry is one scenario in the index.
type ScenarioEntry struct {
	Index       int         `json:"index"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Status      Status      `json:"status"`
	Outcome     string      `json:"outcome,omitempty"` // passed, warned, failed, errored, skipped
	StartTime   *time.Time  `json:"startTime,omitempty"`
	Duration    *int64      `json:"duration,omitempty"` // milliseconds
	Steps       []StepEntry `json:"steps,omitempty"`
	Attachments []string    `json:"attachments,omitempty"`
	Category    string      `json:"errorCategory,omitempty"`
	Error       *string     `json:"error,omitempty"`
}

// StepEntry is one recorded step.
type StepEntry struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Duration int64  `json:"duration"` // milliseconds
	Error    string `json:"error,omitempty"`
}

// BuildIndex converts a finished suite into the report.json document.
// Attachment paths are made relative to reportDir where possible.
func BuildIndex(suite *core.SuiteResult, reportDir string) *Index {
	end := suite.StartTime.Add(suite.Duration)
	idx := &Index{
		Version:     Version,
		RunID:       suite.RunID,
		Name:        suite.Name,
		StartTime:   suite.StartTime,
		EndTime:     &end,
		LastUpdated: time.Now(),
		Environment: Environment{
			ServerURL:        suite.ServerURL,
			BrowserPath:      suite.BrowserPath,
			InstalledVersion: suite.InstalledBuild,
		},
	}
	for i := range suite.Scenarios {
		idx.Scenarios = append(idx.Scenarios, scenarioEntry(i, &suite.Scenarios[i], reportDir))
	}
	idx.Summary = summarize(idx.Scenarios)
	idx.Status = runStatus(idx.Summary)
	return idx
}

func scenarioEntry(i int, res *core.ScenarioResult, reportDir string) ScenarioEntry {
	start := res.StartTime
	ms := res.Duration.Milliseconds()
	e := ScenarioEntry{
		Index:       i,
		Name:        res.Name,
		Description: res.Description,
		Tags:        res.Tags,
		Status:      statusOf(res.Status),
		Outcome:     res.Status.String(),
		StartTime:   &start,
		Duration:    &ms,
	}
	for _, s := range res.Steps {
		e.Steps = append(e.Steps, StepEntry{
			Name:     s.Name,
			Status:   s.Status.String(),
			Optional: s.Optional,
			Duration: s.Duration.Milliseconds(),
			Error:    s.Error,
		})
	}
	for _, a := range res.Attachments {
		e.Attachments = append(e.Attachments, relPath(reportDir, a.Path))
	}
	if res.Error != "" {
		msg := res.Error
		e.Error = &msg
	}
	if res.Category != core.ErrCategoryNone {
		e.Category = res.Category.String()
	}
	return e
}

func summarize(entries []ScenarioEntry) Summary {
	s := Summary{Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		default:
			s.Pending++
		}
	}
	return s
}

func runStatus(s Summary) Status {
	switch {
	case s.Running > 0 || s.Pending > 0:
		return StatusRunning
	case s.Failed > 0:
		return StatusFailed
	case s.Passed == 0 && s.Skipped > 0:
		return StatusSkipped
	default:
		return StatusPassed
	}
}

func relPath(base, path string) string {
	if base == "" || path == "" {
		return path
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return path
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
