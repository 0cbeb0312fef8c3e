package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/scenario"
	"github.com/devicelab-dev/shift-runner/pkg/session"
)

// reachTimeout bounds the WinAppDriver reachability check.
const reachTimeout = 30 * time.Second

var checkConfigCommand = &cli.Command{
	Name:  "check-config",
	Usage: "Print the effective settings and check the WinAppDriver server",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "offline",
			Usage: "Skip the WinAppDriver reachability check",
		},
	},
	Action: func(c *cli.Context) error {
		settings, err := loadSettings(c)
		if err != nil {
			return err
		}
		w := c.App.Writer

		source := settings.Source()
		if source == "" {
			source = "defaults"
		}
		fmt.Fprintf(w, "%sSettings%s (%s)\n", color(colorBold), color(colorReset), source)
		fmt.Fprintf(w, "  %s\n", settings)

		ok := true
		if _, err := os.Stat(settings.BrowserPath()); err != nil {
			fmt.Fprintf(w, "  %s✗%s browser not found at %s\n", color(colorRed), color(colorReset), settings.BrowserPath())
		} else {
			fmt.Fprintf(w, "  %s✓%s browser found at %s\n", color(colorGreen), color(colorReset), settings.BrowserPath())
		}

		if !c.Bool("offline") {
			initCommandLog(c, "check-config")
			defer logger.Close()

			ctx, cancel := context.WithTimeout(c.Context, reachTimeout)
			defer cancel()
			root, err := session.NewManager(settings).OpenRoot(ctx)
			if err != nil {
				ok = false
				fmt.Fprintf(w, "  %s✗%s WinAppDriver at %s: %v\n", color(colorRed), color(colorReset), settings.WinAppDriverURL(), err)
			} else {
				_ = root.Disconnect(ctx)
				fmt.Fprintf(w, "  %s✓%s WinAppDriver reachable at %s\n", color(colorGreen), color(colorReset), settings.WinAppDriverURL())
			}
		}

		if !ok {
			return core.ErrSessionInit.WithMessage("WinAppDriver is not reachable")
		}
		return nil
	},
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List the built-in scenarios",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only list scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Hide scenarios with these tags",
		},
	},
	Action: func(c *cli.Context) error {
		r := scenario.NewRunner(nil, scenario.RunnerConfig{
			IncludeTags: c.StringSlice("include-tags"),
			ExcludeTags: c.StringSlice("exclude-tags"),
		})
		for _, sc := range r.Select(scenario.Builtin()) {
			fmt.Fprintf(c.App.Writer, "%-12s %s %s[%s]%s\n", sc.Name, sc.Description,
				color(colorGray), strings.Join(sc.Tags, ", "), color(colorReset))
		}
		return nil
	},
}
