package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/core"
)

// JUnitFile is the JUnit report name inside a report directory.
const JUnitFile = "junit.xml"

// WriteJUnit writes <reportDir>/junit.xml.
func WriteJUnit(reportDir string, suite *core.SuiteResult) error {
	path := filepath.Join(reportDir, JUnitFile)
	if err := atomicWriteFile(path, []byte(buildJUnitXML(suite)), 0o644); err != nil {
		return fmt.Errorf("write junit xml: %w", err)
	}
	return nil
}

// buildJUnitXML renders assertion failures as <failure> and every other
// error as <error>.
func buildJUnitXML(suite *core.SuiteResult) string {
	var failures, errs, skipped int
	for _, sc := range suite.Scenarios {
		switch sc.Status {
		case core.StatusFailed:
			failures++
		case core.StatusErrored:
			errs++
		case core.StatusSkipped:
			skipped++
		}
	}
	total := suite.Duration.Seconds()

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(fmt.Sprintf(
		`<testsuites tests="%d" failures="%d" skipped="%d" errors="%d" time="%.3f">`+"\n",
		len(suite.Scenarios), failures, skipped, errs, total,
	))
	b.WriteString(fmt.Sprintf(
		`  <testsuite name="%s" tests="%d" failures="%d" skipped="%d" errors="%d" time="%.3f" timestamp="%s">`+"\n",
		xmlEscape(suite.Name), len(suite.Scenarios), failures, skipped, errs, total,
		suite.StartTime.Format(time.RFC3339),
	))

	b.WriteString("    <properties>\n")
	writeProperty(&b, "run.id", suite.RunID)
	writeProperty(&b, "winappdriver.url", suite.ServerURL)
	writeProperty(&b, "browser.path", suite.BrowserPath)
	writeProperty(&b, "browser.version", suite.InstalledBuild)
	b.WriteString("    </properties>\n")

	for i := range suite.Scenarios {
		b.WriteString(buildTestCase(suite.Name, &suite.Scenarios[i]))
	}

	b.WriteString("  </testsuite>\n")
	b.WriteString("</testsuites>\n")
	return b.String()
}

func writeProperty(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(fmt.Sprintf(`      <property name="%s" value="%s"/>`+"\n", name, xmlEscape(value)))
}

func buildTestCase(suiteName string, res *core.ScenarioResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(
		`    <testcase name="%s" classname="%s" time="%.3f">`+"\n",
		xmlEscape(res.Name), xmlEscape(suiteName), res.Duration.Seconds(),
	))

	switch res.Status {
	case core.StatusFailed:
		b.WriteString(fmt.Sprintf(
			`      <failure message="%s" type="%s">%s</failure>`+"\n",
			xmlEscape(res.Error), failureType(res), xmlEscape(failedStep(res)),
		))
	case core.StatusErrored:
		b.WriteString(fmt.Sprintf(
			`      <error message="%s" type="%s">%s</error>`+"\n",
			xmlEscape(res.Error), failureType(res), xmlEscape(failedStep(res)),
		))
	case core.StatusSkipped:
		if res.Error != "" {
			b.WriteString(fmt.Sprintf(`      <skipped message="%s"/>`+"\n", xmlEscape(res.Error)))
		} else {
			b.WriteString("      <skipped/>\n")
		}
	}

	for _, a := range res.Attachments {
		// Jenkins attachments plugin syntax
		b.WriteString(fmt.Sprintf("      <system-out>[[ATTACHMENT|%s]]</system-out>\n", xmlEscape(a.Path)))
	}

	b.WriteString("    </testcase>\n")
	return b.String()
}

func failureType(res *core.ScenarioResult) string {
	switch res.Category {
	case core.ErrCategoryAssertion:
		return "AssertionError"
	case core.ErrCategoryTimeout:
		return "TimeoutError"
	case core.ErrCategoryConnection:
		return "SessionError"
	case core.ErrCategoryApp:
		return "InstallError"
	case core.ErrCategoryConfig:
		return "ConfigError"
	default:
		return "TestError"
	}
}

// failedStep returns the name of the first failed step, or "".
func failedStep(res *core.ScenarioResult) string {
	for _, s := range res.Steps {
		if s.Status == core.StatusFailed || s.Status == core.StatusErrored {
			return s.Name
		}
	}
	return ""
}

// xmlEscape escapes special XML characters in a string.
func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
