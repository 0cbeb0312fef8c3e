// Package session owns the single WinAppDriver session used by a run.
//
// Acquisition is attach-or-launch: a desktop (Root) session looks for an
// already open Shift window and, if one exists, a new session attaches to
// it by native window handle. Otherwise the browser executable is launched.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/config"
	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/winappdriver"
)

// WindowNames are the top-level window titles tried in order when looking
// for a running browser.
var WindowNames = []string{
	"Untitled - Shift Browser",
	"Shift Browser",
	"Welcome to Shift",
	"Shift",
}

// quitTimeout bounds the remote delete in Quit, which takes no context.
const quitTimeout = 30 * time.Second

var errNoWindow = errors.New("no Shift window found")

// Manager hands out the run's session. Get never creates a second live
// session; Replace quits the current one first.
type Manager struct {
	settings *config.Settings

	mu      sync.Mutex
	current *winappdriver.Client
}

// NewManager creates a manager reading server URL, browser path, waits and
// capability naming from settings on every acquisition.
func NewManager(settings *config.Settings) *Manager {
	return &Manager{settings: settings}
}

// Settings returns the configuration the manager reads.
func (m *Manager) Settings() *config.Settings {
	return m.settings
}

// Get returns the cached session, acquiring one first if needed.
func (m *Manager) Get(ctx context.Context) (*winappdriver.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current, nil
	}
	c, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	m.current = c
	return c, nil
}

// Current returns the cached session without acquiring. It is nil when no
// session is live.
func (m *Manager) Current() *winappdriver.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Quit ends the cached session. Shutdown failures are logged, not returned.
// Calling Quit with no session is a no-op.
func (m *Manager) Quit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quitLocked()
}

// Replace quits the current session and acquires a fresh one. Used after the
// browser was reinstalled.
func (m *Manager) Replace(ctx context.Context) (*winappdriver.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.quitLocked()
	c, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	m.current = c
	return c, nil
}

// OpenRoot opens a separate desktop session, used to drive windows that do
// not belong to the browser (the uninstaller prompt). The caller must
// Disconnect it.
func (m *Manager) OpenRoot(ctx context.Context) (*winappdriver.Client, error) {
	root := m.newClient()
	if err := root.Connect(ctx, winappdriver.RootCapabilities()); err != nil {
		return nil, core.ErrSessionInit.
			WithMessagef("failed to open desktop session at %s", m.settings.WinAppDriverURL()).
			WithCause(err)
	}
	return root, nil
}

func (m *Manager) quitLocked() {
	if m.current == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), quitTimeout)
	defer cancel()

	if err := m.current.Disconnect(ctx); err != nil {
		logger.Warn("failed to quit session: %v", err)
	} else {
		logger.Info("session closed")
	}
	m.current = nil
}

func (m *Manager) newClient() *winappdriver.Client {
	c := winappdriver.NewClient(m.settings.WinAppDriverURL())
	c.SetAppiumServer(m.settings.UseAppiumServer())
	return c
}

func (m *Manager) acquire(ctx context.Context) (*winappdriver.Client, error) {
	url := m.settings.WinAppDriverURL()
	logger.Info("initializing session at %s", url)

	root := m.newClient()
	defer closeQuietly(root)

	var attachErr error
	if err := root.Connect(ctx, winappdriver.RootCapabilities()); err != nil {
		attachErr = err
		logger.Warn("desktop session failed: %v", err)
	} else {
		c, err := m.attach(ctx, root)
		if err == nil {
			m.applyImplicitWait(ctx, c)
			return c, nil
		}
		attachErr = err
		logger.Info("attach skipped: %v", err)
	}

	closeQuietly(root)

	path := m.settings.BrowserPath()
	logger.Info("launching %s", path)
	c := m.newClient()
	if err := c.Connect(ctx, winappdriver.LaunchCapabilities(path)); err != nil {
		logger.Error("launch failed: %v", err)
		return nil, core.ErrSessionInit.
			WithMessagef("failed to initialize session at %s", url).
			WithCause(errors.Join(attachErr, err))
	}
	m.applyImplicitWait(ctx, c)
	return c, nil
}

// attach finds the first matching top-level window through root, closes
// root, and opens a session bound to that window.
func (m *Manager) attach(ctx context.Context, root *winappdriver.Client) (*winappdriver.Client, error) {
	for _, name := range WindowNames {
		id, err := root.FindElement(ctx, winappdriver.ByName, name)
		if err != nil {
			logger.Debug("window %q not found: %v", name, err)
			continue
		}

		native, err := root.Attribute(ctx, id, "NativeWindowHandle")
		if err != nil {
			return nil, err
		}
		handle, err := winappdriver.FormatWindowHandle(native)
		if err != nil {
			return nil, err
		}
		logger.Info("found window %q handle %s", name, handle)

		closeQuietly(root)

		c := m.newClient()
		if err := c.Connect(ctx, winappdriver.AttachCapabilities(handle)); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, errNoWindow
}

func (m *Manager) applyImplicitWait(ctx context.Context, c *winappdriver.Client) {
	if err := c.SetImplicitWait(ctx, m.settings.ImplicitWait()); err != nil {
		logger.Warn("failed to set implicit wait: %v", err)
	}
}

func closeQuietly(c *winappdriver.Client) {
	if c.SessionID() == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), quitTimeout)
	defer cancel()
	if err := c.Disconnect(ctx); err != nil {
		logger.Debug("closing desktop session: %v", err)
	}
}
