// Package cli provides the command-line interface for shift-runner.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/shift-runner/pkg/config"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands. Each settings flag overrides
// the matching config.properties key.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to config.properties (default: ./config.properties)",
		EnvVars: []string{"SHIFT_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "winappdriver-url",
		Usage: "WinAppDriver server URL",
	},
	&cli.StringFlag{
		Name:  "browser-path",
		Usage: "Browser executable, %VAR% references are expanded",
	},
	&cli.IntFlag{
		Name:  "implicit-wait",
		Usage: "Implicit wait in seconds",
	},
	&cli.IntFlag{
		Name:  "explicit-wait",
		Usage: "Explicit wait in seconds",
	},
	&cli.StringFlag{
		Name:  "screenshot-dir",
		Usage: "Directory for screenshots",
	},
	&cli.BoolFlag{
		Name:  "appium",
		Usage: "Send capabilities with the appium: prefix (Appium Windows driver)",
	},
	&cli.BoolFlag{
		Name:  "no-failure-screenshots",
		Usage: "Do not capture a screenshot when a scenario fails",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Log to stderr at debug level",
		EnvVars: []string{"SHIFT_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "shift-runner",
		Usage:   "UI automation suite for the Shift browser on Windows",
		Version: Version,
		Description: `shift-runner drives the Shift browser through WinAppDriver: it installs
the browser, walks its setup wizard and runs end-to-end scenarios.

Examples:
  shift-runner run
  shift-runner run --scenario navigation --scenario bookmark
  shift-runner run --include-tags smoke --output ./reports
  shift-runner --winappdriver-url http://10.0.0.5:4723 attach
  shift-runner check-config`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			attachCommand,
			checkConfigCommand,
			listCommand,
		},
	}
}

// initCommandLog opens <home>/logs/<command>_<timestamp>.log for commands
// that do not produce a report directory. The caller must logger.Close.
func initCommandLog(c *cli.Context, command string) {
	dir := config.GetLogsDir()
	path := filepath.Join(dir, command+"_"+time.Now().Format("2006-01-02_15-04-05")+".log")
	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		err = logger.InitWithOptions(logger.Options{Path: path, Console: c.Bool("verbose"), Debug: c.Bool("verbose")})
	}
	if err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: Failed to initialize logger: %v\n", err)
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
