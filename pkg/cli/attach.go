package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/shift-runner/pkg/flows"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/session"
)

var attachCommand = &cli.Command{
	Name:  "attach",
	Usage: "Open a session on the running browser and take a screenshot",
	Description: `Attach to an open Shift window (or launch the browser when none is
open), save a screenshot and close the session. Useful to check that the
WinAppDriver server can see the browser.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "label",
			Usage: "Screenshot label",
			Value: "attach",
		},
		&cli.BoolFlag{
			Name:  "source",
			Usage: "Also save the UI automation tree as XML",
		},
		&cli.BoolFlag{
			Name:  "maximize",
			Usage: "Maximize the window before the screenshot",
		},
	},
	Action: func(c *cli.Context) error {
		settings, err := loadSettings(c)
		if err != nil {
			return err
		}
		initCommandLog(c, "attach")
		defer logger.Close()

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
		defer stop()

		orch := flows.New(flows.Config{Sessions: session.NewManager(settings)})
		defer orch.Sessions().Quit()

		client, err := orch.Sessions().Get(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Session: %s\n", client.SessionID())

		if c.Bool("maximize") {
			orch.MaximizeWindow(ctx)
		}
		att, err := orch.Screenshot(ctx, c.String("label"))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Screenshot: %s\n", att.Path)

		if c.Bool("source") {
			src, err := orch.Screenshots().CapturePageSource(ctx, client, c.String("label"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Page source: %s\n", src.Path)
		}
		return nil
	},
}
