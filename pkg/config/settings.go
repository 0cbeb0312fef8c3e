package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/devicelab-dev/shift-runner/pkg/core"
)

// Settings keys in config.properties.
const (
	KeyBrowserPath         = "browser.path"
	KeyWinAppDriverURL     = "winappdriver.url"
	KeyImplicitWait        = "implicit.wait"
	KeyExplicitWait        = "explicit.wait"
	KeyScreenshotOnFailure = "take.screenshot.on.failure"
	KeyUseAppiumServer     = "use.appium.server"
	KeyScreenshotDir       = "screenshot.dir"
	KeyDownloadsDir        = "downloads.dir"
	KeyDownloadURL         = "download.url"
)

// Defaults used when a key is absent.
const (
	DefaultBrowserPath     = `%LOCALAPPDATA%\Shift\chromium\shift.exe`
	DefaultWinAppDriverURL = "http://127.0.0.1:4723"
	DefaultImplicitWait    = 10
	DefaultExplicitWait    = 30
	DefaultScreenshotDir   = "screenshots"
	DefaultDownloadURL     = "https://shift.com/download/"
)

// envPrefix lets SHIFT_WINAPPDRIVER_URL etc. override file values.
const envPrefix = "SHIFT"

// Settings is the configuration snapshot. It is read-only after Load except
// for the browser path, which is repointed after a fresh install.
type Settings struct {
	browserPath         string
	winAppDriverURL     string
	implicitWait        int
	explicitWait        int
	screenshotOnFailure bool
	useAppiumServer     bool
	screenshotDir       string
	downloadsDir        string
	downloadURL         string

	source string
	lookup func(string) (string, bool)
}

// LoadSettings reads a properties file. Missing keys fall back to defaults.
func LoadSettings(path string) (*Settings, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil {
		return nil, core.ErrInvalidConfig.WithMessagef("failed to load %s", path).WithCause(err)
	}
	s, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	s.source = path
	return s, nil
}

// LoadSettingsFromDir looks for config.properties in dir. When the file is
// absent the defaults (plus SHIFT_* environment overrides) are returned.
func LoadSettingsFromDir(dir string) (*Settings, error) {
	path := filepath.Join(dir, "config.properties")
	if _, err := os.Stat(path); err == nil {
		return LoadSettings(path)
	}
	return fromViper(newViper())
}

// DefaultSettings returns a snapshot built purely from defaults.
func DefaultSettings() *Settings {
	s, _ := fromViper(viper.New())
	return s
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) (*Settings, error) {
	home, _ := os.UserHomeDir()

	v.SetDefault(KeyBrowserPath, DefaultBrowserPath)
	v.SetDefault(KeyWinAppDriverURL, DefaultWinAppDriverURL)
	v.SetDefault(KeyImplicitWait, DefaultImplicitWait)
	v.SetDefault(KeyExplicitWait, DefaultExplicitWait)
	v.SetDefault(KeyScreenshotOnFailure, true)
	v.SetDefault(KeyUseAppiumServer, false)
	v.SetDefault(KeyScreenshotDir, DefaultScreenshotDir)
	v.SetDefault(KeyDownloadsDir, filepath.Join(home, "Downloads"))
	v.SetDefault(KeyDownloadURL, DefaultDownloadURL)

	s := &Settings{
		browserPath:         strings.TrimSpace(v.GetString(KeyBrowserPath)),
		winAppDriverURL:     strings.TrimSpace(v.GetString(KeyWinAppDriverURL)),
		implicitWait:        v.GetInt(KeyImplicitWait),
		explicitWait:        v.GetInt(KeyExplicitWait),
		screenshotOnFailure: v.GetBool(KeyScreenshotOnFailure),
		useAppiumServer:     v.GetBool(KeyUseAppiumServer),
		screenshotDir:       v.GetString(KeyScreenshotDir),
		downloadsDir:        v.GetString(KeyDownloadsDir),
		downloadURL:         v.GetString(KeyDownloadURL),
		lookup:              os.LookupEnv,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks required keys and value ranges.
func (s *Settings) Validate() error {
	var errs []error
	if s.browserPath == "" {
		errs = append(errs, core.ErrMissingRequired.WithMessagef("%s is required", KeyBrowserPath))
	}
	if s.winAppDriverURL == "" {
		errs = append(errs, core.ErrMissingRequired.WithMessagef("%s is required", KeyWinAppDriverURL))
	} else if u, err := url.Parse(s.winAppDriverURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, core.ErrInvalidConfig.WithMessagef("%s %q is not an absolute URL", KeyWinAppDriverURL, s.winAppDriverURL))
	}
	if s.implicitWait < 0 {
		errs = append(errs, core.ErrInvalidConfig.WithMessagef("%s must be >= 0, got %d", KeyImplicitWait, s.implicitWait))
	}
	if s.explicitWait <= 0 {
		errs = append(errs, core.ErrInvalidConfig.WithMessagef("%s must be > 0, got %d", KeyExplicitWait, s.explicitWait))
	}
	return errors.Join(errs...)
}

// Source returns the file the settings came from, or "" for defaults.
func (s *Settings) Source() string { return s.source }

// BrowserPath returns browser.path with %VAR% references expanded.
func (s *Settings) BrowserPath() string {
	return ExpandWindowsEnv(s.browserPath, s.lookup)
}

// RawBrowserPath returns browser.path as configured.
func (s *Settings) RawBrowserPath() string { return s.browserPath }

// SetBrowserPath repoints later session launches at a freshly installed executable.
func (s *Settings) SetBrowserPath(path string) { s.browserPath = path }

// WinAppDriverURL returns the automation server URL.
func (s *Settings) WinAppDriverURL() string { return s.winAppDriverURL }

// ImplicitWait returns implicit.wait as a duration.
func (s *Settings) ImplicitWait() time.Duration {
	return time.Duration(s.implicitWait) * time.Second
}

// ExplicitWait returns explicit.wait as a duration.
func (s *Settings) ExplicitWait() time.Duration {
	return time.Duration(s.explicitWait) * time.Second
}

// ScreenshotOnFailure reports take.screenshot.on.failure.
func (s *Settings) ScreenshotOnFailure() bool { return s.screenshotOnFailure }

// UseAppiumServer reports use.appium.server.
func (s *Settings) UseAppiumServer() bool { return s.useAppiumServer }

// ScreenshotDir returns the screenshot output directory.
func (s *Settings) ScreenshotDir() string { return s.screenshotDir }

// DownloadsDir returns where the installer is downloaded to.
func (s *Settings) DownloadsDir() string {
	return ExpandWindowsEnv(s.downloadsDir, s.lookup)
}

// DownloadURL returns the installer download page.
func (s *Settings) DownloadURL() string { return s.downloadURL }

// Expand resolves %VAR% references in path the same way browser.path is.
func (s *Settings) Expand(path string) string {
	return ExpandWindowsEnv(path, s.lookup)
}

// WithLookup returns a copy that resolves %VAR% with lookup instead of the
// process environment.
func (s *Settings) WithLookup(lookup func(string) (string, bool)) *Settings {
	c := *s
	c.lookup = lookup
	return &c
}

// WithOverrides returns a validated copy with the given keys replaced. CLI
// flags use it on top of the properties file.
func (s *Settings) WithOverrides(values map[string]string) (*Settings, error) {
	c := *s
	for key, raw := range values {
		raw = strings.TrimSpace(raw)
		var err error
		switch key {
		case KeyBrowserPath:
			c.browserPath = raw
		case KeyWinAppDriverURL:
			c.winAppDriverURL = raw
		case KeyImplicitWait:
			c.implicitWait, err = strconv.Atoi(raw)
		case KeyExplicitWait:
			c.explicitWait, err = strconv.Atoi(raw)
		case KeyScreenshotOnFailure:
			c.screenshotOnFailure, err = strconv.ParseBool(raw)
		case KeyUseAppiumServer:
			c.useAppiumServer, err = strconv.ParseBool(raw)
		case KeyScreenshotDir:
			c.screenshotDir = raw
		case KeyDownloadsDir:
			c.downloadsDir = raw
		case KeyDownloadURL:
			c.downloadURL = raw
		default:
			return nil, core.ErrInvalidConfig.WithMessagef("unknown setting %q", key)
		}
		if err != nil {
			return nil, core.ErrInvalidConfig.WithMessagef("invalid value %q for %s", raw, key).WithCause(err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// String summarises the snapshot for logs.
func (s *Settings) String() string {
	return fmt.Sprintf("%s=%s %s=%s %s=%d %s=%d %s=%t %s=%t",
		KeyWinAppDriverURL, s.winAppDriverURL,
		KeyBrowserPath, s.browserPath,
		KeyImplicitWait, s.implicitWait,
		KeyExplicitWait, s.explicitWait,
		KeyScreenshotOnFailure, s.screenshotOnFailure,
		KeyUseAppiumServer, s.useAppiumServer)
}

// ExpandWindowsEnv replaces %NAME% references using lookup. Unknown names and
// unpaired percent signs are left untouched.
func ExpandWindowsEnv(s string, lookup func(string) (string, bool)) string {
	if lookup == nil || !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		start := strings.IndexByte(s[i:], '%')
		if start < 0 {
			b.WriteString(s[i:])
			break
		}
		start += i
		b.WriteString(s[i:start])

		end := strings.IndexByte(s[start+1:], '%')
		if end < 0 {
			b.WriteString(s[start:])
			break
		}
		end += start + 1

		name := s[start+1 : end]
		if val, ok := lookup(name); ok && name != "" {
			b.WriteString(val)
			i = end + 1
			continue
		}
		// Not a known variable: keep the text and rescan from the second '%'.
		b.WriteString(s[start:end])
		i = end
	}
	return b.String()
}
