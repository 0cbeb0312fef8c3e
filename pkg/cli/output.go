package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/scenario"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Steps slower than this are flagged in the live output.
const slowThreshold = 5 * time.Second

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// consoleListener prints live progress.
type consoleListener struct {
	w     io.Writer
	total int
	n     int
}

var _ scenario.Listener = (*consoleListener)(nil)

func (l *consoleListener) OnStart(sc *scenario.Scenario) {
	l.n++
	fmt.Fprintf(l.w, "\n  %s[%d/%d]%s %s%s%s", color(colorCyan), l.n, l.total, color(colorReset),
		color(colorBold), sc.Name, color(colorReset))
	if sc.Description != "" {
		fmt.Fprintf(l.w, " (%s)", sc.Description)
	}
	fmt.Fprintln(l.w)
	fmt.Fprintln(l.w, strings.Repeat("─", 60))
}

func (l *consoleListener) OnPass(res *core.ScenarioResult) {
	l.printSteps(res)
	fmt.Fprintf(l.w, "  %s✓ %s%s %s(%s)%s\n", color(colorGreen), res.Status, color(colorReset),
		color(colorGray), formatDuration(res.Duration), color(colorReset))
}

func (l *consoleListener) OnFail(res *core.ScenarioResult, _ error) {
	l.printSteps(res)
	fmt.Fprintf(l.w, "  %s✗ %s%s %s(%s)%s\n", color(colorRed), res.Status, color(colorReset),
		color(colorGray), formatDuration(res.Duration), color(colorReset))
	if res.Error != "" {
		fmt.Fprintf(l.w, "    %s╰─%s %s\n", color(colorGray), color(colorReset), res.Error)
	}
}

func (l *consoleListener) OnSkip(res *core.ScenarioResult) {
	l.n++
	fmt.Fprintf(l.w, "\n  %s[%d/%d] %s skipped%s", color(colorYellow), l.n, l.total, res.Name, color(colorReset))
	if res.Error != "" {
		fmt.Fprintf(l.w, ": %s", res.Error)
	}
	fmt.Fprintln(l.w)
}

func (l *consoleListener) printSteps(res *core.ScenarioResult) {
	for _, s := range res.Steps {
		dur := formatDuration(s.Duration)
		switch s.Status {
		case core.StatusPassed:
			symbol, symbolColor := "✓", color(colorGreen)
			if s.Duration >= slowThreshold {
				symbol, symbolColor = "⚠", color(colorYellow)
			}
			fmt.Fprintf(l.w, "    %s%s%s %s (%s)\n", symbolColor, symbol, color(colorReset), s.Name, dur)
		case core.StatusWarned:
			fmt.Fprintf(l.w, "    %s⚠%s %s (%s)\n", color(colorYellow), color(colorReset), s.Name, dur)
			fmt.Fprintf(l.w, "      %s╰─ optional: %s%s\n", color(colorGray), s.Error, color(colorReset))
		default:
			fmt.Fprintf(l.w, "    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), s.Name, dur)
			if s.Error != "" {
				fmt.Fprintf(l.w, "      %s╰─%s %s\n", color(colorGray), color(colorReset), s.Error)
			}
		}
	}
}

// printSummary prints the closing table.
func printSummary(w io.Writer, suite *core.SuiteResult, outputDir string) {
	fmt.Fprintf(w, "\n%sSummary%s\n", color(colorBold), color(colorReset))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, sc := range suite.Scenarios {
		c := colorGreen
		switch {
		case sc.Status == core.StatusSkipped:
			c = colorYellow
		case !sc.Status.IsSuccess():
			c = colorRed
		}
		fmt.Fprintf(w, "  %-24s %s%-8s%s %s\n", sc.Name, color(c), sc.Status, color(colorReset), formatDuration(sc.Duration))
	}
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  Total: %d  Passed: %s%d%s  Failed: %s%d%s  Skipped: %d  (%s)\n",
		suite.Total,
		color(colorGreen), suite.Passed, color(colorReset),
		color(colorRed), suite.Failed, color(colorReset),
		suite.Skipped, formatDuration(suite.Duration))
	if outputDir != "" {
		fmt.Fprintf(w, "  Reports: %s\n", outputDir)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
