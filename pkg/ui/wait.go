package ui

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
	"github.com/devicelab-dev/shift-runner/pkg/winappdriver"
)

// DefaultPollInterval is the fixed delay between condition checks.
const DefaultPollInterval = 500 * time.Millisecond

// Condition is polled by Until. Returning an element-gone error (not found
// or stale) counts as false; any other error stops the wait.
type Condition func(ctx context.Context) (bool, error)

// Waiter runs polling waits against one session.
type Waiter struct {
	driver   Driver
	timeout  time.Duration
	implicit time.Duration
	interval time.Duration
}

// NewWaiter creates a waiter. timeout is the explicit wait; implicit is the
// session's implicit wait, restored after operations that zero it.
func NewWaiter(d Driver, timeout, implicit time.Duration) *Waiter {
	return &Waiter{
		driver:   d,
		timeout:  timeout,
		implicit: implicit,
		interval: DefaultPollInterval,
	}
}

// WithInterval returns a copy polling at interval.
func (w *Waiter) WithInterval(interval time.Duration) *Waiter {
	c := *w
	c.interval = interval
	return &c
}

// WithTimeout returns a copy with a different explicit wait.
func (w *Waiter) WithTimeout(timeout time.Duration) *Waiter {
	c := *w
	c.timeout = timeout
	return &c
}

// WithDriver returns a copy bound to another session, keeping the waits.
func (w *Waiter) WithDriver(d Driver) *Waiter {
	c := *w
	c.driver = d
	return &c
}

// Driver returns the session the waiter polls.
func (w *Waiter) Driver() Driver { return w.driver }

// Timeout returns the explicit wait.
func (w *Waiter) Timeout() time.Duration { return w.timeout }

// Until polls cond at the fixed interval until it holds, the explicit wait
// elapses (core.ErrWaitTimeout) or cond fails with a non element-gone error.
func (w *Waiter) Until(ctx context.Context, desc string, cond Condition) error {
	wctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(w.interval), 1)
	var last error
	for {
		if err := limiter.Wait(wctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return core.ErrWaitTimeout.
				WithMessagef("timed out after %s waiting for %s", w.timeout, desc).
				WithCause(last)
		}

		ok, err := cond(wctx)
		switch {
		case err == nil && ok:
			return nil
		case err == nil:
			last = nil
		case winappdriver.IsNotFound(err):
			last = err
		case wctx.Err() != nil:
			// The request was cut short by the deadline; the next limiter
			// wait reports the timeout.
			last = err
		default:
			return err
		}
	}
}

// WaitVisible waits until el is displayed. A transient driver fault restarts
// the whole wait once before the error is returned.
func (w *Waiter) WaitVisible(ctx context.Context, el *Element) error {
	err := w.waitDisplayed(ctx, el)
	if err == nil || !isTransient(ctx, err) {
		return err
	}
	logger.Warn("driver fault while waiting for %s, retrying: %v", el, err)
	if err := w.waitDisplayed(ctx, el); err != nil {
		logger.Error("failed to wait for visibility of %s after retry: %v", el, err)
		return err
	}
	return nil
}

func (w *Waiter) waitDisplayed(ctx context.Context, el *Element) error {
	return w.Until(ctx, el.String()+" to be visible", func(ctx context.Context) (bool, error) {
		id, err := el.Resolve(ctx, w.driver)
		if err != nil {
			return false, err
		}
		return w.driver.IsDisplayed(ctx, id)
	})
}

// WaitClickable waits until el is displayed and enabled.
func (w *Waiter) WaitClickable(ctx context.Context, el *Element) error {
	err := w.Until(ctx, el.String()+" to be clickable", func(ctx context.Context) (bool, error) {
		id, err := el.Resolve(ctx, w.driver)
		if err != nil {
			return false, err
		}
		displayed, err := w.driver.IsDisplayed(ctx, id)
		if err != nil || !displayed {
			return false, err
		}
		return w.driver.IsEnabled(ctx, id)
	})
	if err != nil {
		logger.Warn("element not clickable: %v", err)
	}
	return err
}

// Click waits for el to be visible and clickable, then clicks it.
func (w *Waiter) Click(ctx context.Context, el *Element) error {
	if err := w.WaitVisible(ctx, el); err != nil {
		return err
	}
	if err := w.WaitClickable(ctx, el); err != nil {
		return err
	}

	id, err := el.Resolve(ctx, w.driver)
	if err == nil {
		err = w.driver.Click(ctx, id)
	}
	if err != nil {
		logger.Error("failed to click %s: %v", el, err)
		return err
	}
	logger.Info("clicked %s", el)
	return nil
}

// Type waits for el to be visible, clears it and types text.
func (w *Waiter) Type(ctx context.Context, el *Element, text string) error {
	if err := w.WaitVisible(ctx, el); err != nil {
		return err
	}

	id, err := el.Resolve(ctx, w.driver)
	if err == nil {
		err = w.driver.Clear(ctx, id)
	}
	if err == nil {
		err = w.driver.SendKeysToElement(ctx, id, text)
	}
	if err != nil {
		logger.Error("failed to type into %s: %v", el, err)
		return err
	}
	logger.Info("typed %q into %s", text, el)
	return nil
}

// IsPresent reports whether el exists and is displayed right now. It never
// fails: missing, hidden and stale elements are all simply not present.
func (w *Waiter) IsPresent(ctx context.Context, el *Element) bool {
	id, err := el.Resolve(ctx, w.driver)
	if err != nil {
		if !winappdriver.IsNotFound(err) {
			logger.Debug("presence check for %s: %v", el, err)
		}
		return false
	}
	displayed, err := w.driver.IsDisplayed(ctx, id)
	if err != nil {
		logger.Debug("presence check for %s: %v", el, err)
		return false
	}
	return displayed
}

// Attribute resolves el and reads a property.
func (w *Waiter) Attribute(ctx context.Context, el *Element, name string) (string, error) {
	id, err := el.Resolve(ctx, w.driver)
	if err != nil {
		return "", err
	}
	return w.driver.Attribute(ctx, id, name)
}

// Text resolves el and reads its text.
func (w *Waiter) Text(ctx context.Context, el *Element) (string, error) {
	id, err := el.Resolve(ctx, w.driver)
	if err != nil {
		return "", err
	}
	return w.driver.Text(ctx, id)
}

// IsEnabled resolves el and reads its enabled state.
func (w *Waiter) IsEnabled(ctx context.Context, el *Element) (bool, error) {
	id, err := el.Resolve(ctx, w.driver)
	if err != nil {
		return false, err
	}
	return w.driver.IsEnabled(ctx, id)
}

// HoverClick moves the pointer onto el and clicks there, for controls that
// ignore element clicks.
func (w *Waiter) HoverClick(ctx context.Context, el *Element) error {
	id, err := el.Resolve(ctx, w.driver)
	if err != nil {
		return err
	}
	if err := w.driver.MoveToElement(ctx, id); err != nil {
		return err
	}
	return w.driver.MouseClick(ctx, winappdriver.LeftButton)
}

// isTransient reports whether err is a driver fault worth one retry rather
// than a real timeout, a missing element or cancellation.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, core.ErrWaitTimeout) || winappdriver.IsNotFound(err) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
