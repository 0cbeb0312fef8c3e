package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/core"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath  string // Default: <reportDir>/report.html
	EmbedAssets bool   // Embed screenshots as base64 data URIs
	Title       string // Default: the suite name
}

// HTMLData is the template input.
type HTMLData struct {
	Title     string
	Generated string
	RunID     string
	ServerURL string
	Browser   string
	Version   string
	Duration  string
	Summary   Summary
	Scenarios []htmlScenario
}

type htmlScenario struct {
	Name        string
	Description string
	Tags        string
	Status      string
	Duration    string
	Error       string
	Steps       []htmlStep
	Images      []htmlImage
}

type htmlStep struct {
	Name     string
	Status   string
	Duration string
	Error    string
}

type htmlImage struct {
	Label string
	Src   template.URL
}

// WriteHTML renders a standalone summary page.
func WriteHTML(reportDir string, suite *core.SuiteResult, cfg HTMLConfig) error {
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, "report.html")
	}
	if cfg.Title == "" {
		cfg.Title = suite.Name
	}

	out, err := renderHTML(buildHTMLData(reportDir, suite, cfg))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if err := atomicWriteFile(cfg.OutputPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

func buildHTMLData(reportDir string, suite *core.SuiteResult, cfg HTMLConfig) HTMLData {
	idx := BuildIndex(suite, reportDir)
	data := HTMLData{
		Title:     cfg.Title,
		Generated: time.Now().Format("2006-01-02 15:04:05"),
		RunID:     suite.RunID,
		ServerURL: suite.ServerURL,
		Browser:   suite.BrowserPath,
		Version:   suite.InstalledBuild,
		Duration:  formatDuration(suite.Duration),
		Summary:   idx.Summary,
	}

	for _, res := range suite.Scenarios {
		sc := htmlScenario{
			Name:        res.Name,
			Description: res.Description,
			Tags:        strings.Join(res.Tags, ", "),
			Status:      res.Status.String(),
			Duration:    formatDuration(res.Duration),
			Error:       res.Error,
		}
		for _, s := range res.Steps {
			sc.Steps = append(sc.Steps, htmlStep{
				Name:     s.Name,
				Status:   s.Status.String(),
				Duration: formatDuration(s.Duration),
				Error:    s.Error,
			})
		}
		for _, a := range res.Attachments {
			if !a.IsImage() {
				continue
			}
			src := relPath(reportDir, a.Path)
			if cfg.EmbedAssets {
				if inline := loadAsBase64(a.Path); inline != "" {
					src = inline
				}
			}
			sc.Images = append(sc.Images, htmlImage{Label: a.Name, Src: template.URL(src)})
		}
		data.Scenarios = append(data.Scenarios, sc)
	}
	return data
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

func loadAsBase64(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-secondary: #f9fafb;
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --failed: #ef4444;
            --skipped: #eab308;
        }
        body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 24px; }
        .meta { color: var(--text-muted); font-size: 13px; }
        .summary span { margin-right: 16px; font-weight: 600; }
        .scenario { border: 1px solid var(--border-color); border-radius: 6px; margin: 16px 0; padding: 12px; }
        .status-passed, .status-warned { color: var(--passed); }
        .status-failed, .status-errored { color: var(--failed); }
        .status-skipped { color: var(--skipped); }
        table { border-collapse: collapse; width: 100%; font-size: 13px; }
        td { border-top: 1px solid var(--border-color); padding: 4px 8px; }
        .error { background: var(--bg-secondary); white-space: pre-wrap; padding: 8px; }
        figure { display: inline-block; margin: 8px; }
        figure img { max-width: 320px; border: 1px solid var(--border-color); }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <p class="meta">Run {{.RunID}} &middot; generated {{.Generated}} &middot; {{.Duration}}</p>
    <p class="meta">WinAppDriver {{.ServerURL}}{{if .Browser}} &middot; {{.Browser}}{{end}}{{if .Version}} &middot; {{.Version}}{{end}}</p>
    <div class="summary">
        <span>Total {{.Summary.Total}}</span>
        <span class="status-passed">Passed {{.Summary.Passed}}</span>
        <span class="status-failed">Failed {{.Summary.Failed}}</span>
        <span class="status-skipped">Skipped {{.Summary.Skipped}}</span>
    </div>
    {{range .Scenarios}}
    <div class="scenario">
        <h2 class="status-{{.Status}}">{{.Name}} &middot; {{.Status}} &middot; {{.Duration}}</h2>
        {{if .Description}}<p>{{.Description}}</p>{{end}}
        {{if .Tags}}<p class="meta">{{.Tags}}</p>{{end}}
        {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
        <table>
            {{range .Steps}}
            <tr><td class="status-{{.Status}}">{{.Status}}</td><td>{{.Name}}</td><td>{{.Duration}}</td><td>{{.Error}}</td></tr>
            {{end}}
        </table>
        {{range .Images}}
        <figure><img src="{{.Src}}" alt="{{.Label}}"><figcaption>{{.Label}}</figcaption></figure>
        {{end}}
    </div>
    {{end}}
</body>
</html>
`
