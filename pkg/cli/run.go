package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/shift-runner/pkg/config"
	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/flows"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/publish"
	"github.com/devicelab-dev/shift-runner/pkg/report"
	"github.com/devicelab-dev/shift-runner/pkg/scenario"
	"github.com/devicelab-dev/shift-runner/pkg/session"
)

// errScenariosFailed makes the process exit non-zero after a red run.
var errScenariosFailed = errors.New("one or more scenarios failed")

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run the end-to-end scenarios",
	Description: `Run the built-in scenarios (install, navigation, bookmark) against a
WinAppDriver server.

Selection comes from suite.yaml in the working directory (or --suite) and
is narrowed by --scenario and the tag flags.

Reports are generated in the output directory:
  - Default: reportDir from suite.yaml, else <home>/reports/<timestamp>/
    where <home> is $SHIFT_RUNNER_HOME, the install root above bin/, or
    the working directory
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  shift-runner run
  shift-runner run --scenario navigation
  shift-runner run --include-tags regression --exclude-tags install
  shift-runner run -e LOCALAPPDATA=D:\Apps --output ./out --flatten`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "suite",
			Usage: "Path to suite.yaml",
		},
		&cli.StringSliceFlag{
			Name:    "scenario",
			Aliases: []string{"s"},
			Usage:   "Scenario to run (repeatable); default all",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Environment variables (KEY=VALUE)",
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only run scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Skip scenarios with these tags",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: <home>/reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},

		// Report publishing
		&cli.StringFlag{
			Name:    "s3-bucket",
			Usage:   "Upload the report directory to this bucket",
			EnvVars: []string{"SHIFT_S3_BUCKET"},
		},
		&cli.StringFlag{
			Name:    "s3-prefix",
			Usage:   "Key prefix for uploaded reports",
			EnvVars: []string{"SHIFT_S3_PREFIX"},
		},
		&cli.StringFlag{
			Name:    "s3-endpoint",
			Usage:   "S3-compatible endpoint URL (default: AWS)",
			EnvVars: []string{"SHIFT_S3_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "s3-region",
			Usage:   "Bucket region",
			Value:   "us-east-1",
			EnvVars: []string{"SHIFT_S3_REGION", "AWS_REGION"},
		},
		&cli.StringFlag{
			Name:    "s3-access-key",
			Usage:   "Access key ID (default: AWS credential chain)",
			EnvVars: []string{"SHIFT_S3_ACCESS_KEY"},
		},
		&cli.StringFlag{
			Name:    "s3-secret-key",
			Usage:   "Secret access key",
			EnvVars: []string{"SHIFT_S3_SECRET_KEY"},
		},
		&cli.BoolFlag{
			Name:    "s3-path-style",
			Usage:   "Use path-style bucket addressing (MinIO and similar)",
			EnvVars: []string{"SHIFT_S3_PATH_STYLE"},
		},
	},
	Action: runScenarios,
}

// RunConfig is the resolved run command input.
type RunConfig struct {
	OutputDir   string
	Names       []string
	IncludeTags []string
	ExcludeTags []string
	Verbose     bool
	Publish     publish.Config
}

func runScenarios(c *cli.Context) error {
	ws, err := loadWorkspace(c.String("suite"))
	if err != nil {
		return err
	}
	if err := ws.ApplyEnv(); err != nil {
		return fmt.Errorf("apply suite env: %w", err)
	}
	if err := applyEnvFlags(c.StringSlice("env")); err != nil {
		return err
	}

	settings, err := loadSettings(c)
	if err != nil {
		return err
	}

	base := c.String("output")
	if base == "" {
		base = ws.ReportDir
	}
	if base == "" && !c.Bool("flatten") {
		base = config.GetReportsDir()
	}
	outputDir, err := report.OutputDir(base, c.Bool("flatten"), time.Now())
	if err != nil {
		return err
	}

	cfg := &RunConfig{
		OutputDir:   outputDir,
		Names:       pick(c.StringSlice("scenario"), ws.Scenarios),
		IncludeTags: pick(c.StringSlice("include-tags"), ws.IncludeTags),
		ExcludeTags: pick(c.StringSlice("exclude-tags"), ws.ExcludeTags),
		Verbose:     c.Bool("verbose"),
		Publish: publish.Config{
			Endpoint:        c.String("s3-endpoint"),
			Region:          c.String("s3-region"),
			AccessKeyID:     c.String("s3-access-key"),
			SecretAccessKey: c.String("s3-secret-key"),
			Bucket:          c.String("s3-bucket"),
			Prefix:          c.String("s3-prefix"),
			UsePathStyle:    c.Bool("s3-path-style"),
		},
	}
	for _, name := range cfg.Names {
		if _, ok := scenario.Lookup(name); !ok {
			return core.ErrInvalidConfig.WithMessagef("unknown scenario %q", name)
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return executeRun(ctx, c.App.Writer, settings, cfg)
}

func executeRun(ctx context.Context, out io.Writer, settings *config.Settings, cfg *RunConfig) error {
	// 1. Output directory and log
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	logPath := filepath.Join(cfg.OutputDir, "shift-runner.log")
	if err := logger.InitWithOptions(logger.Options{Path: logPath, Console: cfg.Verbose, Debug: cfg.Verbose}); err != nil {
		fmt.Fprintf(out, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	logger.Info("=== Test execution started ===")
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Settings: %s", settings)

	// 2. Wiring
	sessions := session.NewManager(settings)
	orch := flows.New(flows.Config{Sessions: sessions})
	runner := scenario.NewRunner(orch, scenario.RunnerConfig{
		Names:       cfg.Names,
		IncludeTags: cfg.IncludeTags,
		ExcludeTags: cfg.ExcludeTags,
	})
	selected := runner.Select(scenario.Builtin())
	if len(selected) == 0 {
		return core.ErrInvalidConfig.WithMessage("no scenarios match the selection")
	}

	index := report.NewIndexWriter(cfg.OutputDir, "Shift Browser Suite", selected, report.Environment{
		ServerURL:   settings.WinAppDriverURL(),
		BrowserPath: settings.BrowserPath(),
	})
	runner.AddListener(scenario.LogListener{})
	runner.AddListener(index)
	runner.AddListener(&consoleListener{w: out, total: len(selected)})

	fmt.Fprintf(out, "%sShift Browser Suite%s: %d scenario(s) against %s\n",
		color(colorBold), color(colorReset), len(selected), settings.WinAppDriverURL())

	// 3. Run
	suite := runner.Run(ctx, selected)
	index.End(suite)

	// 4. Reports
	logger.Info("Generating reports...")
	if err := report.Generate(cfg.OutputDir, suite); err != nil {
		fmt.Fprintf(out, "  %s⚠%s Warning: failed to generate reports: %v\n", color(colorYellow), color(colorReset), err)
	}
	printSummary(out, suite, cfg.OutputDir)

	// 5. Publish
	if cfg.Publish.Enabled() {
		if err := publishReports(ctx, out, cfg); err != nil {
			fmt.Fprintf(out, "  %s⚠%s Warning: failed to publish reports: %v\n", color(colorYellow), color(colorReset), err)
		}
	}

	logger.Info("=== Test execution finished ===")
	if !suite.Success() {
		return errScenariosFailed
	}
	return nil
}

func publishReports(ctx context.Context, out io.Writer, cfg *RunConfig) error {
	// Upload even when the run was interrupted.
	ctx = context.WithoutCancel(ctx)
	p, err := publish.New(ctx, cfg.Publish)
	if err != nil {
		return err
	}
	res, err := p.Upload(ctx, cfg.OutputDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  Published %d files to s3://%s/%s\n",
		len(res.Keys), cfg.Publish.Bucket, p.Key(filepath.Base(filepath.Clean(cfg.OutputDir))))
	return nil
}

func loadWorkspace(path string) (*config.Workspace, error) {
	if path == "" {
		return config.LoadWorkspaceFromDir(".")
	}
	ws, err := config.LoadWorkspace(path)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessagef("failed to load %s", path).WithCause(err)
	}
	return ws, nil
}

// applyEnvFlags exports KEY=VALUE pairs.
func applyEnvFlags(pairs []string) error {
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return core.ErrInvalidConfig.WithMessagef("invalid --env %q, want KEY=VALUE", kv)
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}

// pick returns flag values when given, otherwise the suite file's.
func pick(flag, fromSuite []string) []string {
	if len(flag) > 0 {
		return flag
	}
	return fromSuite
}
