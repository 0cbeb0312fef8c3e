// Package screenshot saves labelled PNG captures of the automation session.
package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// TimestampLayout is the yyyyMMdd_HHmmss suffix of every file name.
const TimestampLayout = "20060102_150405"

// Source is a session that can capture its window.
type Source interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// PageSource is a session that can dump its UI tree.
type PageSource interface {
	Source(ctx context.Context) (string, error)
}

// Taker writes captures into one directory.
type Taker struct {
	dir       string
	onFailure bool
	banner    bool
	now       func() time.Time
}

// New creates a taker writing to dir. onFailure is the
// take.screenshot.on.failure setting.
func New(dir string, onFailure bool) *Taker {
	return &Taker{dir: dir, onFailure: onFailure, banner: true, now: time.Now}
}

// WithoutBanner returns a copy that saves captures unmodified.
func (t *Taker) WithoutBanner() *Taker {
	c := *t
	c.banner = false
	return &c
}

// WithClock returns a copy using now for file timestamps.
func (t *Taker) WithClock(now func() time.Time) *Taker {
	c := *t
	c.now = now
	return &c
}

// Dir returns the output directory.
func (t *Taker) Dir() string { return t.dir }

// OnFailure reports whether failure captures are enabled.
func (t *Taker) OnFailure() bool { return t.onFailure }

// Capture takes a screenshot regardless of configuration and saves it as
// <dir>/<label>_<timestamp>.png.
func (t *Taker) Capture(ctx context.Context, src Source, label string) (core.Attachment, error) {
	data, err := src.Screenshot(ctx)
	if err != nil {
		logger.Error("failed to take screenshot %q: %v", label, err)
		return core.Attachment{}, fmt.Errorf("screenshot %q: %w", label, err)
	}

	if t.banner {
		if annotated, err := Annotate(data, label); err == nil {
			data = annotated
		} else {
			logger.Debug("screenshot banner skipped: %v", err)
		}
	}

	path, err := t.save(FileName(label, t.now()), data)
	if err != nil {
		logger.Error("failed to save screenshot %q: %v", label, err)
		return core.Attachment{}, err
	}
	logger.Info("screenshot saved: %s", path)
	return core.NewScreenshotAttachment(label, path, data), nil
}

// CaptureFailure takes a screenshot only when failure captures are
// enabled. ok is false when capture was skipped.
func (t *Taker) CaptureFailure(ctx context.Context, src Source, label string) (att core.Attachment, ok bool, err error) {
	if !t.onFailure {
		return core.Attachment{}, false, nil
	}
	att, err = t.Capture(ctx, src, label)
	return att, err == nil, err
}

// CapturePageSource saves the UI tree next to the screenshots.
func (t *Taker) CapturePageSource(ctx context.Context, src PageSource, label string) (core.Attachment, error) {
	xml, err := src.Source(ctx)
	if err != nil {
		return core.Attachment{}, fmt.Errorf("page source %q: %w", label, err)
	}
	name := strings.TrimSuffix(FileName(label, t.now()), ".png") + ".xml"
	path, err := t.save(name, []byte(xml))
	if err != nil {
		return core.Attachment{}, err
	}
	return core.NewPageSourceAttachment(path, []byte(xml)), nil
}

func (t *Taker) save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(t.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// FileName builds <label>_<yyyyMMdd_HHmmss>.png. Characters Windows
// rejects in file names are replaced with '_'.
func FileName(label string, at time.Time) string {
	return sanitize(label) + "_" + at.Format(TimestampLayout) + ".png"
}

func sanitize(label string) string {
	if label == "" {
		return core.AttachmentScreenshot
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		}
		return r
	}, label)
}

const (
	glyphWidth   = 7 // basicfont.Face7x13
	bannerHeight = 18
	bannerPad    = 4
)

// fitLabel cuts label at the last whole character that fits in width pixels.
func fitLabel(label string, width int) string {
	maxChars := (width - 2*bannerPad) / glyphWidth
	if r := []rune(label); maxChars > 0 && len(r) > maxChars {
		return string(r[:maxChars])
	}
	return label
}

// Annotate draws label in a dark banner across the top of a PNG.
func Annotate(data []byte, label string) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	banner := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+bannerHeight).Intersect(bounds)
	draw.Draw(rgba, banner, image.NewUniform(color.RGBA{A: 0xc0}), image.Point{}, draw.Over)

	label = fitLabel(label, bounds.Dx())
	d := &font.Drawer{
		Dst:  rgba,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(bounds.Min.X+bannerPad, bounds.Min.Y+bannerHeight-bannerPad),
	}
	d.DrawString(label)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
