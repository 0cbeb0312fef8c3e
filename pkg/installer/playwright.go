package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// PlaywrightDownloader fetches the installer with a headless Chromium
// driven by Playwright. The download page starts the download by itself.
type PlaywrightDownloader struct {
	Timeout  time.Duration
	Headless bool
}

// NewPlaywrightDownloader returns a headless downloader.
func NewPlaywrightDownloader(timeout time.Duration) *PlaywrightDownloader {
	return &PlaywrightDownloader{Timeout: timeout, Headless: true}
}

// Download implements Downloader.
func (d *PlaywrightDownloader) Download(ctx context.Context, url, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create downloads dir: %w", err)
	}

	logger.Info("starting Chromium for download")
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}
	defer func() {
		if err := pw.Stop(); err != nil {
			logger.Warn("stop playwright: %v", err)
		}
	}()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.Headless),
	})
	if err != nil {
		return fmt.Errorf("launch chromium: %w", err)
	}
	defer browser.Close()

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		AcceptDownloads: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("new browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("new page: %w", err)
	}

	timeoutMS := float64(d.Timeout.Milliseconds())
	if deadline, ok := ctx.Deadline(); ok {
		if left := float64(time.Until(deadline).Milliseconds()); left < timeoutMS {
			timeoutMS = left
		}
	}

	download, err := page.ExpectDownload(func() error {
		// Navigation to a download is aborted by Chromium; the download
		// event is what matters.
		if _, err := page.Goto(url); err != nil {
			logger.Debug("navigation to %s: %v", url, err)
		}
		return nil
	}, playwright.PageExpectDownloadOptions{Timeout: playwright.Float(timeoutMS)})
	if err != nil {
		return fmt.Errorf("no download started from %s: %w", url, err)
	}

	target := filepath.Join(dir, download.SuggestedFilename())
	if err := download.SaveAs(target); err != nil {
		return fmt.Errorf("save download: %w", err)
	}
	logger.Info("downloaded %s", target)
	return nil
}
