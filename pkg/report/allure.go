package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// AllureDir is the results directory inside a report directory.
const AllureDir = "allure-results"

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// WriteAllure writes <reportDir>/allure-results/: one result per scenario,
// copies of its attachments, categories.json and environment.properties.
func WriteAllure(reportDir string, suite *core.SuiteResult) error {
	allureDir := filepath.Join(reportDir, AllureDir)
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	for i := range suite.Scenarios {
		result := buildAllureResult(suite, &suite.Scenarios[i], allureDir)
		path := filepath.Join(allureDir, result.UUID+"-result.json")
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", result.Name, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", result.Name, err)
		}
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	return writeAllureEnvironment(allureDir, suite)
}

func buildAllureResult(suite *core.SuiteResult, res *core.ScenarioResult, allureDir string) AllureResult {
	start := res.StartTime.UnixMilli()
	labels := []AllureLabel{
		{Name: "suite", Value: suite.Name},
		{Name: "framework", Value: "winappdriver"},
		{Name: "severity", Value: "normal"},
	}
	for _, tag := range res.Tags {
		labels = append(labels, AllureLabel{Name: "tag", Value: tag})
	}

	steps := make([]AllureStep, 0, len(res.Steps))
	for _, s := range res.Steps {
		stepStart := s.StartTime.UnixMilli()
		steps = append(steps, AllureStep{
			Name:          s.Name,
			Status:        mapAllureStatus(s.Status),
			Stage:         "finished",
			Start:         stepStart,
			Stop:          stepStart + s.Duration.Milliseconds(),
			StatusDetails: AllureStatusDetails{Message: s.Error},
			Steps:         []AllureStep{},
			Attachments:   []AllureAttachment{},
		})
	}

	attachments := make([]AllureAttachment, 0, len(res.Attachments))
	for _, a := range res.Attachments {
		source := uuid.NewString() + "-attachment" + filepath.Ext(a.Path)
		if err := copyFile(a.Path, filepath.Join(allureDir, source)); err != nil {
			logger.Warn("allure: attachment %s not copied: %v", a.Path, err)
			continue
		}
		attachments = append(attachments, AllureAttachment{Name: a.Name, Source: source, Type: a.ContentType})
	}

	return AllureResult{
		UUID:          uuid.NewString(),
		HistoryID:     fnv32aHash(suite.Name + ":" + res.Name),
		FullName:      suite.Name + "." + res.Name,
		Name:          res.Name,
		Description:   res.Description,
		Status:        mapAllureStatus(res.Status),
		Stage:         "finished",
		Start:         start,
		Stop:          start + res.Duration.Milliseconds(),
		Labels:        labels,
		StatusDetails: AllureStatusDetails{Message: res.Error},
		Steps:         steps,
		Attachments:   attachments,
	}
}

// mapAllureStatus maps a step status to an Allure status. Errors that are
// not assertion failures are "broken".
func mapAllureStatus(s core.StepStatus) string {
	switch s {
	case core.StatusPassed, core.StatusWarned:
		return "passed"
	case core.StatusFailed:
		return "failed"
	case core.StatusErrored:
		return "broken"
	case core.StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Found", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?i).*(not found|no such element).*"},
		{Name: "Version Mismatch", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*expected version.*"},
		{Name: "Bookmark Missing", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*bookmark.*"},
		{Name: "Timeout", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*(timeout|timed out).*"},
		{Name: "Session Error", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*(session|connection refused|winappdriver).*"},
		{Name: "Install Failed", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*(install|download).*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	if err := os.WriteFile(filepath.Join(allureDir, "categories.json"), data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

func writeAllureEnvironment(allureDir string, suite *core.SuiteResult) error {
	var b strings.Builder
	b.WriteString("framework=winappdriver\n")
	if suite.RunID != "" {
		b.WriteString(fmt.Sprintf("run.id=%s\n", suite.RunID))
	}
	if suite.ServerURL != "" {
		b.WriteString(fmt.Sprintf("winappdriver.url=%s\n", suite.ServerURL))
	}
	if suite.BrowserPath != "" {
		b.WriteString(fmt.Sprintf("browser.path=%s\n", propertyEscape(suite.BrowserPath)))
	}
	if suite.InstalledBuild != "" {
		b.WriteString(fmt.Sprintf("browser.version=%s\n", suite.InstalledBuild))
	}

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}

// propertyEscape doubles backslashes, which Java properties treat as escapes.
func propertyEscape(s string) string {
	return strings.ReplaceAll(s, `\`, `\\`)
}
