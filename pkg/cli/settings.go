package cli

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/shift-runner/pkg/config"
)

// loadSettings reads config.properties (from --config or the working
// directory) and applies the global flag overrides.
func loadSettings(c *cli.Context) (*config.Settings, error) {
	var (
		s   *config.Settings
		err error
	)
	if path := c.String("config"); path != "" {
		s, err = config.LoadSettings(path)
	} else {
		s, err = config.LoadSettingsFromDir(".")
	}
	if err != nil {
		return nil, err
	}

	overrides := settingsOverrides(c)
	if len(overrides) == 0 {
		return s, nil
	}
	return s.WithOverrides(overrides)
}

func settingsOverrides(c *cli.Context) map[string]string {
	out := map[string]string{}
	str := func(flag, key string) {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	num := func(flag, key string) {
		if c.IsSet(flag) {
			out[key] = strconv.Itoa(c.Int(flag))
		}
	}

	str("winappdriver-url", config.KeyWinAppDriverURL)
	str("browser-path", config.KeyBrowserPath)
	str("screenshot-dir", config.KeyScreenshotDir)
	num("implicit-wait", config.KeyImplicitWait)
	num("explicit-wait", config.KeyExplicitWait)
	if c.IsSet("appium") {
		out[config.KeyUseAppiumServer] = strconv.FormatBool(c.Bool("appium"))
	}
	if c.Bool("no-failure-screenshots") {
		out[config.KeyScreenshotOnFailure] = "false"
	}
	return out
}
