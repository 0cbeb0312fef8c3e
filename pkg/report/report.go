package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// IndexFile is the run index name inside a report directory.
const IndexFile = "report.json"

// OutputDir resolves the report directory.
//   - base empty: ./reports/<timestamp>/
//   - flatten: base itself
func OutputDir(base string, flatten bool, at time.Time) (string, error) {
	if flatten && base == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}
	if base == "" {
		base = "./reports"
	}
	if flatten {
		return filepath.Clean(base), nil
	}
	return filepath.Join(base, at.Format("2006-01-02_15-04-05")), nil
}

// Generate writes report.json, allure-results/, junit.xml and report.html
// for a finished suite. The HTML page is best effort.
func Generate(reportDir string, suite *core.SuiteResult) error {
	if err := atomicWriteJSON(filepath.Join(reportDir, IndexFile), BuildIndex(suite, reportDir)); err != nil {
		return fmt.Errorf("write %s: %w", IndexFile, err)
	}
	if err := WriteAllure(reportDir, suite); err != nil {
		return err
	}
	if err := WriteJUnit(reportDir, suite); err != nil {
		return err
	}
	if err := WriteHTML(reportDir, suite, HTMLConfig{}); err != nil {
		logger.Warn("html report: %v", err)
	}
	return nil
}
